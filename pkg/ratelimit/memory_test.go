package ratelimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/LiaiZenApp/liazen-api/pkg/ratelimit"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Increment(t *testing.T) {
	s := ratelimit.NewMemoryStore()
	ctx := context.Background()

	count, start, err := s.Increment(ctx, "k", ratelimit.PerMinute, epoch)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC), start)

	count, _, err = s.Increment(ctx, "k", ratelimit.PerMinute, epoch.Add(29*time.Second))
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	// Windows of different kinds are separate buckets.
	count, _, err = s.Increment(ctx, "k", ratelimit.PerHour, epoch)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	// The minute bucket resets at the boundary.
	count, start, err = s.Increment(ctx, "k", ratelimit.PerMinute, epoch.Add(30*time.Second))
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Date(2026, 5, 4, 10, 1, 0, 0, time.UTC), start)
}

func TestMemoryStore_Sweep(t *testing.T) {
	s := ratelimit.NewMemoryStore()
	ctx := context.Background()

	_, _, err := s.Increment(ctx, "idle", ratelimit.PerMinute, epoch)
	require.NoError(t, err)
	_, _, err = s.Increment(ctx, "idle", ratelimit.PerHour, epoch)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())

	// Nothing has elapsed yet.
	require.Zero(t, s.Sweep(epoch.Add(10*time.Second)))

	// The minute window is over, the hour window is not.
	require.Equal(t, 1, s.Sweep(epoch.Add(2*time.Minute)))
	require.Equal(t, 1, s.Len())

	require.Equal(t, 1, s.Sweep(epoch.Add(2*time.Hour)))
	require.Zero(t, s.Len())

	// An evicted key starts over cleanly.
	count, _, err := s.Increment(ctx, "idle", ratelimit.PerMinute, epoch.Add(2*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestMemoryStore_SweepDuringTraffic(t *testing.T) {
	s := ratelimit.NewMemoryStore()
	ctx := context.Background()
	now := epoch.Add(time.Hour)

	_, _, err := s.Increment(ctx, "hot", ratelimit.PerMinute, epoch)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = s.Increment(ctx, "hot", ratelimit.PerMinute, now)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Sweep(now)
	}()
	wg.Wait()

	// However the sweep interleaved, no increment for the live window was
	// lost into an evicted bucket.
	count, _, err := s.Increment(ctx, "hot", ratelimit.PerMinute, now)
	require.NoError(t, err)
	require.EqualValues(t, 101, count)
	require.Equal(t, 1, s.Len())
}
