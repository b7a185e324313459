package retention

import (
	"context"
	"time"

	"github.com/aman-churiwal/api-tracker/internal/config"
	"github.com/aman-churiwal/api-tracker/internal/service"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler periodically deletes tracked records older than the
// configured retention window. Records are otherwise immutable, so
// this is the only code path that removes them.
type Scheduler struct {
	analytics *service.AnalyticsService
	config    config.RetentionConfig
	logger    *zap.Logger
	server    *cron.Cron
}

func NewScheduler(analytics *service.AnalyticsService, cfg config.RetentionConfig, logger *zap.Logger) *Scheduler {
	server := cron.New(
		cron.WithSeconds(),
	)

	return &Scheduler{
		analytics: analytics,
		config:    cfg,
		logger:    logger,
		server:    server,
	}
}

func (s *Scheduler) Run() error {
	if _, err := s.server.AddFunc(s.config.Schedule, s.cleanup); err != nil {
		return err
	}

	s.server.Start()
	s.logger.Info("retention scheduler started",
		zap.String("schedule", s.config.Schedule),
		zap.Int("retention_days", s.config.Days),
	)
	return nil
}

func (s *Scheduler) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	deleted, err := s.analytics.CleanupOldLogs(ctx, s.config.Days)
	if err != nil {
		s.logger.Error("retention cleanup failed", zap.Error(err))
		return
	}

	s.logger.Info("retention cleanup finished", zap.Int64("deleted", deleted))
}

func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.server.Stop()

	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
