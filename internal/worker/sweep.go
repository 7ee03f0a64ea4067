package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/communitymeet/backend/internal/models"
	"github.com/communitymeet/backend/pkg/clock"
)

// UpcomingLister finds meetings starting inside a wall-clock window.
type UpcomingLister interface {
	ListStartingBetween(ctx context.Context, date, from, to string) ([]models.Meeting, error)
}

// PushSweep reminds subscribers shortly before a meeting starts. Each tick
// covers the (now, now+interval] window, so a meeting is picked up by
// exactly one tick.
type PushSweep struct {
	meetings      UpcomingLister
	notifications *NotificationProcessor
	clk           clock.Clock
	interval      time.Duration
	logger        *zap.Logger
}

// NewPushSweep creates the upcoming-meeting push sweep.
func NewPushSweep(meetings UpcomingLister, notifications *NotificationProcessor, clk clock.Clock, interval time.Duration, logger *zap.Logger) *PushSweep {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.System{}
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &PushSweep{meetings: meetings, notifications: notifications, clk: clk, interval: interval, logger: logger}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *PushSweep) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info("push sweep started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("push sweep stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep pushes a start reminder for every meeting beginning in the next
// window. One meeting's failure is logged and the rest continue.
func (s *PushSweep) Sweep(ctx context.Context) {
	now := s.clk.Now()
	date := now.Format("2006-01-02")
	from := now.Format("15:04")
	to := now.Add(s.interval).Format("15:04")
	if to < from {
		// The window wraps past midnight; clamp to the end of today.
		to = "23:59"
	}
	list, err := s.meetings.ListStartingBetween(ctx, date, from, to)
	if err != nil {
		s.logger.Error("upcoming meeting listing failed", zap.Error(err))
		return
	}
	for i := range list {
		m := &list[i]
		if err := s.notifications.pushToRecipients(ctx, m, false); err != nil {
			s.logger.Error("start reminder failed", zap.String("mid", m.MID), zap.Error(err))
		}
	}
}
