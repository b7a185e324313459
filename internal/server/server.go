package server

import (
	"context"
	"net/http"
	"time"

	"github.com/aman-churiwal/api-tracker/internal/config"
	"github.com/aman-churiwal/api-tracker/internal/handler"
	"github.com/aman-churiwal/api-tracker/internal/middleware"
	"github.com/aman-churiwal/api-tracker/internal/repository"
	"github.com/aman-churiwal/api-tracker/internal/service"
	"github.com/aman-churiwal/api-tracker/internal/storage"
	"github.com/aman-churiwal/api-tracker/internal/tracking"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	router   *gin.Engine
	config   *config.Config
	logger   *zap.Logger
	redis    *storage.RedisClient
	postgres *storage.Postgres

	writer        *tracking.Writer
	authService   *service.AuthService
	apiKeyService *service.APIKeyService
	analytics     *service.AnalyticsService

	httpServer *http.Server
}

func New(cfg *config.Config, redis *storage.RedisClient, postgres *storage.Postgres, logger *zap.Logger) *Server {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	logRepo := repository.NewRequestLogRepository(postgres)
	writer := tracking.NewWriter(
		logRepo,
		logger,
		cfg.Tracking.BufferSize,
		cfg.Tracking.BatchSize,
		time.Duration(cfg.Tracking.FlushIntervalSecs)*time.Second,
	)

	authRepo := repository.NewAuthRepository(postgres)
	authService := service.NewAuthService(authRepo, cfg.Auth.JWTSecret, cfg.Auth.TokenExpiryHours)

	apiKeyRepo := repository.NewAPIKeyRepository(postgres)
	apiKeyService := service.NewAPIKeyService(apiKeyRepo, redis)

	analytics := service.NewAnalyticsService(logRepo, redis)

	s := &Server{
		router:        router,
		config:        cfg,
		logger:        logger,
		redis:         redis,
		postgres:      postgres,
		writer:        writer,
		authService:   authService,
		apiKeyService: apiKeyService,
		analytics:     analytics,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Tracker builds a tracking middleware wired to this server's batch
// writer and configured defaults. Each route group attaches its own.
func (s *Server) Tracker(opts ...tracking.Option) (*tracking.Tracker, error) {
	return tracking.New(s.config.Tracking, s.logger, s.writer.Enqueue, opts...)
}

// Identify resolves the JWT actor for tracked routes without
// requiring authentication.
func (s *Server) Identify() gin.HandlerFunc {
	return middleware.Identify(s.authService)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.APIKeyValidator(s.apiKeyService))
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	authHandler := handler.NewAuthHandler(s.authService)
	auth := s.router.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	logsHandler := handler.NewLogsHandler(s.analytics, s.config.Retention.Days)
	analyticsHandler := handler.NewAnalyticsHandler(s.analytics)
	apiKeyHandler := handler.NewAPIKeyHandler(s.apiKeyService)

	admin := s.router.Group("/admin")
	admin.Use(middleware.RequireAuth(s.authService))
	admin.Use(middleware.RateLimit(s.redis, s.config.RateLimit.RequestsPerMinute))
	{
		admin.GET("/logs", logsHandler.List)
		admin.GET("/logs/:id", logsHandler.Get)
		admin.POST("/logs/cleanup", logsHandler.Cleanup)

		admin.GET("/analytics", analyticsHandler.GetSummary)
		admin.GET("/analytics/timeseries", analyticsHandler.GetTimeSeries)
		admin.GET("/analytics/keys/:id", analyticsHandler.GetAPIKeyStats)

		admin.POST("/keys", apiKeyHandler.Create)
		admin.GET("/keys", apiKeyHandler.List)
		admin.DELETE("/keys/:id", apiKeyHandler.Delete)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	redisHealthy := true
	if err := s.redis.Ping(c.Request.Context()); err != nil {
		redisHealthy = false
		s.logger.Warn("redis health check failed", zap.Error(err))
	}

	dbHealthy := true
	if err := s.postgres.Ping(c.Request.Context()); err != nil {
		dbHealthy = false
		s.logger.Warn("database health check failed", zap.Error(err))
	}

	status := "healthy"
	statusCode := http.StatusOK

	if !redisHealthy || !dbHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "api-tracker",
		"timestamp": time.Now().Unix(),
		"checks": gin.H{
			"redis":    redisHealthy,
			"database": dbHealthy,
		},
	})
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	s.logger.Info("starting API tracker",
		zap.String("addr", addr),
		zap.String("environment", s.config.Server.Environment),
	)

	return s.httpServer.ListenAndServe()
}

// Shutdown stops the HTTP server and flushes the pending log batch.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return err
		}
	}

	return s.writer.Close(ctx)
}

func (s *Server) Analytics() *service.AnalyticsService {
	return s.analytics
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
