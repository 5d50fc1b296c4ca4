// File: internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"waste_portal_backend/internal/analytics"
	"waste_portal_backend/internal/auth"
	"waste_portal_backend/internal/common"
	"waste_portal_backend/internal/config"
	"waste_portal_backend/internal/jobs"
	"waste_portal_backend/internal/middleware"
	"waste_portal_backend/internal/notification"
	"waste_portal_backend/internal/platform/elasticsearch"
	"waste_portal_backend/internal/platform/metrics"
	"waste_portal_backend/internal/realtime"
	"waste_portal_backend/internal/report"
	"waste_portal_backend/internal/schedule"
	"waste_portal_backend/internal/shared"
	"waste_portal_backend/internal/user"
	"waste_portal_backend/internal/webapp"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handlers groups the HTTP handlers mounted under /api/v1.
type Handlers struct {
	Auth         *auth.Handler
	Profile      *user.Handler
	Schedule     *schedule.Handler
	Notification *notification.Handler
	Report       *report.Handler
	Realtime     *realtime.Handler
	Analytics    *analytics.Handler
}

// Background groups the long-running pieces started with the server.
// Broker and ReportIndex are nil when Redis or Elasticsearch is not configured.
type Background struct {
	ReminderJob  *jobs.CollectionReminderJob
	ReconcileJob *jobs.RegistrationReconcileJob
	Broker       *realtime.RedisBroker
	ReportIndex  *elasticsearch.ReportIndex
}

// Server struct holds the dependencies for the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	cfg        *config.Config
	logger     *zap.Logger
	db         *gorm.DB
	background Background
}

// NewServer creates a new instance of our application server.
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	handlers Handlers,
	background Background,
	tokens shared.TokenService,
	blocklist shared.TokenBlocklist,
	profiles middleware.ProfileLoader,
) (*Server, error) {
	gin.SetMode(cfg.GinMode)
	router := gin.New()

	// --- Global Middleware ---
	router.Use(middleware.ZapLogger(logger, cfg))
	router.Use(middleware.ErrorHandler(logger))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	// Credentials cannot be combined with a wildcard origin.
	corsConfig.AllowCredentials = !allowsAnyOrigin(cfg.CORSAllowedOrigins)
	corsConfig.ExposeHeaders = []string{"Content-Length", middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	authMW := middleware.AuthMiddleware(tokens, blocklist, profiles, logger.Named("AuthMiddleware"))
	staffMW := middleware.RoleAuthMiddleware(common.RoleOfficial, common.RoleAdmin)
	adminMW := middleware.RoleAuthMiddleware(common.RoleAdmin)
	limitMW := middleware.RateLimit(middleware.NewIPRateLimiter(cfg.AuthRateLimitPerMinute, cfg.AuthRateLimitBurst))

	// --- Infrastructure routes ---
	router.GET("/health", healthHandler(db))
	if cfg.MetricsEnabled {
		metrics.Register()
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	if cfg.StorageDriver == "local" && strings.HasPrefix(cfg.StoragePublicBaseURL, "/") {
		router.Static(cfg.StoragePublicBaseURL, cfg.StorageLocalPath)
	}

	// --- API routes ---
	v1 := router.Group("/api/v1")
	handlers.Auth.RegisterRoutes(v1, authMW, limitMW)
	handlers.Profile.RegisterRoutes(v1, authMW, adminMW)
	handlers.Schedule.RegisterRoutes(v1, authMW, staffMW)
	handlers.Notification.RegisterRoutes(v1, authMW, staffMW)
	handlers.Report.RegisterRoutes(v1, authMW, staffMW)
	handlers.Realtime.RegisterRoutes(v1, authMW)
	handlers.Analytics.RegisterRoutes(v1, authMW, staffMW)

	// Everything else belongs to the single-page app.
	webapp.NewSPA(cfg.WebRoot, logger).Register(router)

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       2 * time.Minute,
		// No WriteTimeout: the realtime stream holds its response open.
		IdleTimeout: 120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		cfg:        cfg,
		logger:     logger,
		db:         db,
		background: background,
	}, nil
}

// Router exposes the engine for in-process tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN", "message": "Database unreachable."})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "Waste portal API is healthy!"})
	}
}

// StartBackground prepares the search index, joins the Redis change feed and
// schedules the cron jobs. Failures are logged; the API still serves without them.
func (s *Server) StartBackground(ctx context.Context) {
	bg := s.background
	if bg.ReportIndex != nil {
		if err := bg.ReportIndex.EnsureIndex(ctx); err != nil {
			s.logger.Error("Failed to create Elasticsearch reports index", zap.Error(err))
		}
	} else {
		s.logger.Info("Elasticsearch not configured, report search uses the database.")
	}
	if bg.Broker != nil {
		if err := bg.Broker.Start(ctx); err != nil {
			s.logger.Error("Failed to start realtime broker", zap.Error(err))
		}
	}
	if bg.ReminderJob != nil {
		if err := bg.ReminderJob.SetupAndStart(); err != nil {
			s.logger.Error("Failed to setup and start collection reminder job", zap.Error(err))
		}
	}
	if bg.ReconcileJob != nil {
		if err := bg.ReconcileJob.SetupAndStart(); err != nil {
			s.logger.Error("Failed to setup and start registration reconcile job", zap.Error(err))
		}
	}
}

func (s *Server) Start() error {
	s.StartBackground(context.Background())

	s.logger.Info("HTTP Server starting",
		zap.String("address", s.httpServer.Addr),
		zap.String("gin_mode", s.cfg.GinMode),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("Failed to start HTTP server", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP Server stopped")
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Attempting graceful server shutdown...")
	err := s.httpServer.Shutdown(ctx)

	bg := s.background
	if bg.ReminderJob != nil {
		bg.ReminderJob.Stop()
	}
	if bg.ReconcileJob != nil {
		bg.ReconcileJob.Stop()
	}
	if bg.Broker != nil {
		bg.Broker.Stop()
	}
	return err
}
