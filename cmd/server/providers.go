// File: cmd/server/providers.go
package main

import (
	"context"

	"waste_portal_backend/internal/config"
	"waste_portal_backend/internal/filestorage"
	"waste_portal_backend/internal/notification"
	"waste_portal_backend/internal/platform/database"
	"waste_portal_backend/internal/platform/elasticsearch"
	"waste_portal_backend/internal/realtime"
	"waste_portal_backend/internal/report"
	"waste_portal_backend/internal/user"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// provideSearchIndex keeps a nil *ReportIndex from becoming a non-nil interface.
func provideSearchIndex(index *elasticsearch.ReportIndex) report.SearchIndex {
	if index == nil {
		return nil
	}
	return index
}

func provideBroker(client *goredis.Client, hub *realtime.Hub, cfg *config.Config, logger *zap.Logger) *realtime.RedisBroker {
	return realtime.NewRedisBroker(client, hub, cfg.RedisChannelPrefix, logger)
}

func provideStore(cfg *config.Config, logger *zap.Logger) (filestorage.Store, error) {
	return filestorage.NewStore(context.Background(), cfg, logger)
}

// provideCleanups lists what delete_user must purge once the profile row is gone.
func provideCleanups(reports *report.ServiceImplementation, notifications *notification.ServiceImplementation) user.Cleanups {
	return user.Cleanups{reports, notifications}
}

// provideDB opens the database and closes it on cleanup.
func provideDB(cfg *config.Config, logger *zap.Logger) (*gorm.DB, func(), error) {
	db, err := database.NewGORM(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		logger.Info("Closing database connection...")
		database.CloseGORMDB(db)
	}
	return db, cleanup, nil
}
