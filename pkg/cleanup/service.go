// Package cleanup schedules data retention sweeps.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/recall/pkg/config"
	"github.com/codeready-toolchain/recall/pkg/models"
	"github.com/codeready-toolchain/recall/pkg/store"
)

// Service periodically enqueues a retention_cleanup job. The sweep itself
// runs on the job workers, so it shares their retry semantics and only one
// worker executes it at a time.
type Service struct {
	config config.RetentionConfig
	store  *store.Store

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg config.RetentionConfig, st *store.Store) *Service {
	return &Service{
		config: cfg,
		store:  st,
	}
}

// Start launches the background scheduling loop. The first sweep is enqueued
// immediately.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"retention_days_turns", s.config.DaysTurns,
		"retention_days_memory", s.config.DaysMemory,
		"interval", s.config.CleanupInterval)
}

// Stop signals the scheduling loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.enqueueSweep(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.enqueueSweep(ctx)
		}
	}
}

func (s *Service) enqueueSweep(ctx context.Context) {
	if _, err := s.store.EnqueueJob(ctx, models.JobTypeRetentionCleanup, models.JSONMap{}, nil); err != nil {
		slog.Error("Retention: failed to enqueue cleanup job", "error", err)
	}
}
