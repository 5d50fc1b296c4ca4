// File: cmd/server/wire.go
//go:build wireinject
// +build wireinject

package main

import (
	"waste_portal_backend/internal/analytics"
	"waste_portal_backend/internal/app"
	"waste_portal_backend/internal/auth"
	"waste_portal_backend/internal/config"
	"waste_portal_backend/internal/firebase"
	"waste_portal_backend/internal/jobs"
	"waste_portal_backend/internal/middleware"
	"waste_portal_backend/internal/notification"
	"waste_portal_backend/internal/platform/elasticsearch"
	"waste_portal_backend/internal/platform/logger"
	"waste_portal_backend/internal/platform/redis"
	"waste_portal_backend/internal/realtime"
	"waste_portal_backend/internal/registration"
	"waste_portal_backend/internal/report"
	"waste_portal_backend/internal/schedule"
	"waste_portal_backend/internal/shared"
	"waste_portal_backend/internal/user"

	"github.com/google/wire"
)

var platformSet = wire.NewSet(
	logger.New,
	provideDB,
	redis.NewClient,
	elasticsearch.NewClient,
	elasticsearch.NewReportIndex,
	provideSearchIndex,
	provideStore,
	firebase.NewFirebaseService,
	realtime.NewHub,
	provideBroker,
	realtime.NewPublisher,
)

var identitySet = wire.NewSet(
	user.NewGORMRepository,
	user.NewService,
	user.NewHandler,
	provideCleanups,
	wire.Bind(new(user.Service), new(*user.ServiceImplementation)),
	wire.Bind(new(user.IdentityRevoker), new(*firebase.FirebaseService)),
	wire.Bind(new(middleware.ProfileLoader), new(*user.ServiceImplementation)),
	wire.Bind(new(auth.ProviderProfileResolver), new(*user.ServiceImplementation)),
	wire.Bind(new(auth.IDTokenVerifier), new(*firebase.FirebaseService)),

	registration.NewGORMRepository,
	registration.NewLogCodeSender,
	registration.NewService,
	wire.Bind(new(registration.CodeSender), new(*registration.LogCodeSender)),
	wire.Bind(new(registration.Service), new(*registration.ServiceImplementation)),

	auth.NewJWTService,
	auth.NewTokenBlocklist,
	auth.NewService,
	auth.NewOAuthService,
	auth.NewHandler,
	wire.Bind(new(shared.TokenService), new(*auth.JWTService)),
	wire.Bind(new(auth.Service), new(*auth.ServiceImplementation)),
)

var portalSet = wire.NewSet(
	schedule.NewGORMRepository,
	schedule.NewService,
	schedule.NewHandler,
	wire.Bind(new(schedule.Service), new(*schedule.ServiceImplementation)),

	notification.NewGORMRepository,
	notification.NewSentinelStore,
	notification.NewService,
	notification.NewHandler,
	wire.Bind(new(notification.Service), new(*notification.ServiceImplementation)),
	wire.Bind(new(notification.ScheduleFinder), new(*schedule.ServiceImplementation)),
	wire.Bind(new(notification.AreaDirectory), new(user.Repository)),

	report.NewGORMRepository,
	report.NewService,
	report.NewHandler,
	wire.Bind(new(report.Service), new(*report.ServiceImplementation)),
	wire.Bind(new(report.Notifier), new(*notification.ServiceImplementation)),

	analytics.NewService,
	analytics.NewHandler,
	wire.Bind(new(analytics.Service), new(*analytics.ServiceImplementation)),
	wire.Bind(new(analytics.ReportCounter), new(report.Repository)),
	wire.Bind(new(analytics.ScheduleCounter), new(*schedule.ServiceImplementation)),
	wire.Bind(new(analytics.ProfileCounter), new(user.Repository)),

	realtime.NewHandler,

	jobs.NewCollectionReminderJob,
	jobs.NewRegistrationReconcileJob,
	wire.Bind(new(jobs.ReminderGenerator), new(*notification.ServiceImplementation)),
	wire.Bind(new(jobs.Reconciler), new(*registration.ServiceImplementation)),
)

// initializeServer is the main Wire injector.
func initializeServer(cfg *config.Config) (*app.Server, func(), error) {
	wire.Build(
		platformSet,
		identitySet,
		portalSet,
		wire.Struct(new(app.Handlers), "*"),
		wire.Struct(new(app.Background), "*"),
		app.NewServer,
	)
	return nil, nil, nil
}
