package meetings

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/communitymeet/backend/internal/errs"
)

// conflictPad widens the requested window on both ends when probing for
// booked hosts, keeping a buffer between back-to-back meetings on one host.
const conflictPad = 30 * time.Minute

// BookingFinder looks up host ids already booked in a window. Implemented by
// Repository.
type BookingFinder interface {
	BookedHosts(ctx context.Context, platform, date, startSearch, endSearch string) ([]string, error)
}

// Allocator picks a free host from a platform's static pool for a requested
// window. It holds no lock between the availability check and the provider
// call that follows; the pool itself is the only enforced exclusion.
type Allocator struct {
	finder BookingFinder
	pools  map[string][]string
	logger *zap.Logger
}

// NewAllocator creates a host allocator over the configured pools.
func NewAllocator(finder BookingFinder, pools map[string][]string, logger *zap.Logger) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{finder: finder, pools: pools, logger: logger}
}

// Available returns the hosts of a platform free for the padded window.
func (a *Allocator) Available(ctx context.Context, platform, date, start, end string) ([]string, error) {
	startSearch, err := shiftClock(start, -conflictPad)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid start %q", errs.ErrValidation, start)
	}
	endSearch, err := shiftClock(end, conflictPad)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid end %q", errs.ErrValidation, end)
	}
	booked, err := a.finder.BookedHosts(ctx, platform, date, startSearch, endSearch)
	if err != nil {
		return nil, fmt.Errorf("query booked hosts: %w", err)
	}
	unavailable := make(map[string]struct{}, len(booked))
	for _, h := range booked {
		unavailable[h] = struct{}{}
	}
	var available []string
	for _, h := range a.pools[platform] {
		if _, taken := unavailable[h]; !taken {
			available = append(available, h)
		}
	}
	a.logger.Debug("host availability",
		zap.String("platform", platform),
		zap.String("date", date),
		zap.Strings("booked", booked),
		zap.Strings("available", available))
	return available, nil
}

// Allocate picks one free host uniformly at random, spreading load across
// the pool. Exhaustion (including an unconfigured platform pool) is a
// conflict, not a fault.
func (a *Allocator) Allocate(ctx context.Context, platform, date, start, end string) (string, error) {
	available, err := a.Available(ctx, platform, date, start, end)
	if err != nil {
		return "", err
	}
	if len(available) == 0 {
		return "", fmt.Errorf("%w: no host available on %s %s-%s", errs.ErrConflict, date, start, end)
	}
	return available[rand.Intn(len(available))], nil
}

// shiftClock offsets an "HH:MM" wall-clock string, clamping at the edges of
// the day so a padded probe never wraps into the neighbouring date.
func shiftClock(clock string, d time.Duration) (string, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return "", err
	}
	shifted := t.Add(d)
	if d < 0 && shifted.Day() != t.Day() {
		return "00:00", nil
	}
	if d > 0 && shifted.Day() != t.Day() {
		return "23:59", nil
	}
	return shifted.Format("15:04"), nil
}
