package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"newsdesk/internal/domain"
)

// Syncer runs one sync on behalf of an actor; an empty actor marks an
// unattended run.
type Syncer interface {
	RunSync(ctx context.Context, req domain.SyncRequest, actorID string) (*domain.SyncSummary, error)
}

// Scheduler triggers unattended syncs with the configured defaults. Ticks that
// land inside the cooldown or on a running sync are skipped, not queued.
type Scheduler struct {
	syncer   Syncer
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(syncer Syncer, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		syncer:   syncer,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runSync(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runSync(ctx)
		}
	}
}

func (s *Scheduler) runSync(ctx context.Context) {
	summary, err := s.syncer.RunSync(ctx, domain.SyncRequest{}, "")
	switch {
	case errors.Is(err, domain.ErrCooldownActive), errors.Is(err, domain.ErrSyncAlreadyRunning):
		s.logger.Info("scheduled sync skipped", "reason", err)
	case err != nil:
		s.logger.Error("scheduled sync failed", "error", err)
	default:
		s.logger.Info("scheduled sync finished",
			"status", summary.Status,
			"created", summary.CreatedCount,
			"updated", summary.UpdatedCount,
			"skipped", summary.SkippedCount,
		)
	}
}
