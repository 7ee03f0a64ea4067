package meetings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communitymeet/backend/internal/errs"
)

type fakeFinder struct {
	booked      []string
	err         error
	gotStart    string
	gotEnd      string
	gotPlatform string
}

func (f *fakeFinder) BookedHosts(ctx context.Context, platform, date, startSearch, endSearch string) ([]string, error) {
	f.gotPlatform = platform
	f.gotStart = startSearch
	f.gotEnd = endSearch
	return f.booked, f.err
}

var testPools = map[string][]string{
	"tencent": {"h1", "h2", "h3"},
	"welink":  {"w1"},
}

func TestAvailableSubtractsBookedHosts(t *testing.T) {
	finder := &fakeFinder{booked: []string{"h2", "h2", "h3"}}
	a := NewAllocator(finder, testPools, nil)

	available, err := a.Available(context.Background(), "tencent", "2026-09-01", "10:00", "11:00")
	require.NoError(t, err)
	assert.Equal(t, []string{"h1"}, available)
}

func TestAvailableUsesPaddedProbeWindow(t *testing.T) {
	finder := &fakeFinder{}
	a := NewAllocator(finder, testPools, nil)

	_, err := a.Available(context.Background(), "tencent", "2026-09-01", "10:00", "11:00")
	require.NoError(t, err)
	assert.Equal(t, "09:30", finder.gotStart)
	assert.Equal(t, "11:30", finder.gotEnd)
}

func TestAvailableClampsAtDayEdges(t *testing.T) {
	finder := &fakeFinder{}
	a := NewAllocator(finder, testPools, nil)

	_, err := a.Available(context.Background(), "tencent", "2026-09-01", "00:10", "23:45")
	require.NoError(t, err)
	assert.Equal(t, "00:00", finder.gotStart)
	assert.Equal(t, "23:59", finder.gotEnd)
}

func TestAllocateReturnsMemberOfAvailable(t *testing.T) {
	finder := &fakeFinder{booked: []string{"h1"}}
	a := NewAllocator(finder, testPools, nil)

	for i := 0; i < 20; i++ {
		host, err := a.Allocate(context.Background(), "tencent", "2026-09-01", "10:00", "11:00")
		require.NoError(t, err)
		assert.Contains(t, []string{"h2", "h3"}, host)
	}
}

func TestAllocateExhaustionIsConflict(t *testing.T) {
	finder := &fakeFinder{booked: []string{"h1", "h2", "h3"}}
	a := NewAllocator(finder, testPools, nil)

	_, err := a.Allocate(context.Background(), "tencent", "2026-09-01", "10:00", "11:00")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestAllocateEmptyPoolIsConflict(t *testing.T) {
	a := NewAllocator(&fakeFinder{}, testPools, nil)

	_, err := a.Allocate(context.Background(), "zoom", "2026-09-01", "10:00", "11:00")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestAvailableInvalidClock(t *testing.T) {
	a := NewAllocator(&fakeFinder{}, testPools, nil)

	_, err := a.Available(context.Background(), "tencent", "2026-09-01", "banana", "11:00")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestAvailableFinderError(t *testing.T) {
	finder := &fakeFinder{err: errors.New("connection refused")}
	a := NewAllocator(finder, testPools, nil)

	_, err := a.Available(context.Background(), "tencent", "2026-09-01", "10:00", "11:00")
	require.Error(t, err)
	assert.NotErrorIs(t, err, errs.ErrConflict)
}
