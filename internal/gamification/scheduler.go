package gamification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler runs the nightly progress maintenance.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *Service
	logger    *slog.Logger
	at        string
}

// NewScheduler schedules maintenance daily at the UTC wall clock time at ("15:04").
func NewScheduler(service *Service, at string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		service:   service,
		logger:    logger,
		at:        at,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(1).Day().At(s.at).Do(s.runDaily); err != nil {
		return fmt.Errorf("schedule daily maintenance: %w", err)
	}
	s.scheduler.StartAsync()
	s.logger.Info("progress scheduler started", "at", s.at)
	return nil
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.logger.Info("progress scheduler stopped")
}

func (s *Scheduler) runDaily() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := s.service.RunDailyMaintenance(ctx); err != nil {
		s.logger.Error("daily maintenance failed", "error", err)
	}
}
