package activities

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/communitymeet/backend/internal/models"
	"github.com/communitymeet/backend/pkg/clock"
)

// SweepStore is the slice of the repository the scheduler needs.
type SweepStore interface {
	ListForSweep(ctx context.Context) ([]models.Activity, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to int) (bool, error)
}

// Scheduler periodically advances time-driven activity states: an activity
// in registering moves to going on its start date, and one in going moves
// to completed once its end date has passed.
type Scheduler struct {
	store    SweepStore
	clk      clock.Clock
	interval time.Duration
	logger   *zap.Logger
}

// NewScheduler creates an activity status scheduler.
func NewScheduler(store SweepStore, clk clock.Clock, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.System{}
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{store: store, clk: clk, interval: interval, logger: logger}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info("activity status scheduler started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("activity status scheduler stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep advances every eligible activity once. One activity's failure is
// logged and does not abort the rest of the sweep.
func (s *Scheduler) Sweep(ctx context.Context) {
	today := s.clk.Now().Format("2006-01-02")
	list, err := s.store.ListForSweep(ctx)
	if err != nil {
		s.logger.Error("sweep listing failed", zap.Error(err))
		return
	}
	for _, a := range list {
		var (
			from, to int
		)
		switch {
		case a.Status == models.ActivityStatusRegistering && a.StartDate == today:
			from, to = models.ActivityStatusRegistering, models.ActivityStatusGoing
		case a.Status == models.ActivityStatusGoing && a.EndDate < today:
			from, to = models.ActivityStatusGoing, models.ActivityStatusCompleted
		default:
			continue
		}
		changed, err := s.store.TransitionStatus(ctx, a.ID, from, to)
		if err != nil {
			s.logger.Error("activity transition failed",
				zap.String("activity_id", a.ID.String()),
				zap.Int("from", from), zap.Int("to", to), zap.Error(err))
			continue
		}
		if changed {
			s.logger.Info("activity advanced",
				zap.String("activity_id", a.ID.String()),
				zap.Int("from", from), zap.Int("to", to))
		}
	}
}
