package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aman-churiwal/api-tracker/internal/config"
	"github.com/aman-churiwal/api-tracker/internal/retention"
	"github.com/aman-churiwal/api-tracker/internal/server"
	"github.com/aman-churiwal/api-tracker/internal/storage"
	"github.com/aman-churiwal/api-tracker/internal/tracking"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load env if it exists
	godotenv.Load()

	cfg, err := config.Load("config.json")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Server.Environment)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	redis, err := storage.NewRedis(
		cfg.Redis.GetRedisAddr(),
		cfg.Redis.Password,
		cfg.Redis.DB,
	)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redis.Close()

	postgres, err := storage.NewPostgres(cfg.Postgres.DSN)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer postgres.Close()

	if err := postgres.AutoMigrate(); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	srv := server.New(cfg, redis, postgres, logger)

	if err := registerTrackedRoutes(srv); err != nil {
		logger.Fatal("failed to register tracked routes", zap.Error(err))
	}

	scheduler := retention.NewScheduler(srv.Analytics(), cfg.Retention, logger)
	if err := scheduler.Run(); err != nil {
		logger.Fatal("failed to start retention scheduler", zap.Error(err))
	}

	go func() {
		addr := ":" + cfg.Server.Port
		if err := srv.Run(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := scheduler.Stop(ctx); err != nil {
		logger.Error("retention scheduler shutdown failed", zap.Error(err))
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("exited")
}

// Sample API surface showing per-group tracking policies. A host
// application would register its own routes the same way.
func registerTrackedRoutes(srv *server.Server) error {
	router := srv.GetRouter()

	// Logs every method
	tracked, err := srv.Tracker()
	if err != nil {
		return err
	}

	// Logs mutations only, with an extra redacted field
	mutations, err := srv.Tracker(
		tracking.WithMethods("POST", "PUT", "PATCH", "DELETE"),
		tracking.WithSensitiveFields("token"),
	)
	if err != nil {
		return err
	}

	api := router.Group("/api", srv.Identify(), tracked.Handler())
	{
		api.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong"})
		})
	}

	items := router.Group("/items", srv.Identify(), mutations.Handler())
	{
		items.GET("", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"items": []string{}})
		})
		items.POST("", func(c *gin.Context) {
			c.JSON(http.StatusCreated, gin.H{"created": true})
		})
	}

	return nil
}

func newLogger(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
