package activities

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/communitymeet/backend/internal/models"
	"github.com/communitymeet/backend/pkg/clock"
)

type memSweepStore struct {
	activities map[uuid.UUID]*models.Activity
	listErr    error
	failID     uuid.UUID
}

func (s *memSweepStore) ListForSweep(ctx context.Context) ([]models.Activity, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.Activity
	for _, a := range s.activities {
		out = append(out, *a)
	}
	return out, nil
}

func (s *memSweepStore) TransitionStatus(ctx context.Context, id uuid.UUID, from, to int) (bool, error) {
	if id == s.failID {
		return false, errors.New("store unavailable")
	}
	a, ok := s.activities[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	return true, nil
}

func newActivity(status int, start, end string) *models.Activity {
	return &models.Activity{ID: uuid.New(), Status: status, StartDate: start, EndDate: end}
}

func TestSweepAdvancesStates(t *testing.T) {
	starting := newActivity(models.ActivityStatusRegistering, "2026-09-01", "2026-09-02")
	future := newActivity(models.ActivityStatusRegistering, "2026-09-10", "2026-09-11")
	running := newActivity(models.ActivityStatusGoing, "2026-08-30", "2026-08-31")
	done := newActivity(models.ActivityStatusCompleted, "2026-08-01", "2026-08-02")

	store := &memSweepStore{activities: map[uuid.UUID]*models.Activity{
		starting.ID: starting,
		future.ID:   future,
		running.ID:  running,
		done.ID:     done,
	}}
	clk := clock.Fixed{T: time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)}
	s := NewScheduler(store, clk, time.Minute, nil)

	s.Sweep(context.Background())

	assert.Equal(t, models.ActivityStatusGoing, starting.Status)
	assert.Equal(t, models.ActivityStatusRegistering, future.Status)
	assert.Equal(t, models.ActivityStatusCompleted, running.Status)
	assert.Equal(t, models.ActivityStatusCompleted, done.Status)
}

func TestSweepIsIdempotent(t *testing.T) {
	a := newActivity(models.ActivityStatusRegistering, "2026-09-01", "2026-09-03")
	store := &memSweepStore{activities: map[uuid.UUID]*models.Activity{a.ID: a}}
	clk := clock.Fixed{T: time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)}
	s := NewScheduler(store, clk, time.Minute, nil)

	s.Sweep(context.Background())
	assert.Equal(t, models.ActivityStatusGoing, a.Status)

	// The second run on the same day changes nothing further.
	s.Sweep(context.Background())
	assert.Equal(t, models.ActivityStatusGoing, a.Status)
}

func TestSweepContinuesAfterFailure(t *testing.T) {
	failing := newActivity(models.ActivityStatusGoing, "2026-08-20", "2026-08-21")
	healthy := newActivity(models.ActivityStatusGoing, "2026-08-20", "2026-08-21")
	store := &memSweepStore{
		activities: map[uuid.UUID]*models.Activity{failing.ID: failing, healthy.ID: healthy},
		failID:     failing.ID,
	}
	clk := clock.Fixed{T: time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)}
	s := NewScheduler(store, clk, time.Minute, nil)

	s.Sweep(context.Background())

	assert.Equal(t, models.ActivityStatusGoing, failing.Status)
	assert.Equal(t, models.ActivityStatusCompleted, healthy.Status)
}
