package ratelimit_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LiaiZenApp/liazen-api/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startRedis runs a throwaway Redis in Docker, skipping when Docker is not
// available.
func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisStore(t *testing.T) {
	client := startRedis(t)
	store := ratelimit.NewRedisStore(client, "test:")
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	// Redis expires keys on the real clock, so test windows must lie in
	// the future.
	base := time.Now().UTC().Truncate(time.Hour).Add(2*time.Hour + 30*time.Second)

	t.Run("increment and window reset", func(t *testing.T) {
		count, start, err := store.Increment(ctx, "k", ratelimit.PerMinute, base)
		require.NoError(t, err)
		require.EqualValues(t, 1, count)
		require.Equal(t, ratelimit.PerMinute.Start(base), start)

		count, _, err = store.Increment(ctx, "k", ratelimit.PerMinute, base.Add(10*time.Second))
		require.NoError(t, err)
		require.EqualValues(t, 2, count)

		count, _, err = store.Increment(ctx, "k", ratelimit.PerMinute, base.Add(30*time.Second))
		require.NoError(t, err)
		require.EqualValues(t, 1, count)
	})

	t.Run("limiter over redis admits exactly the limit", func(t *testing.T) {
		const n = 20
		l, err := ratelimit.New(ratelimit.Config{
			Store:  store,
			Limits: ratelimit.Limits{PerMinute: n, PerHour: 1000},
			Now:    func() time.Time { return base },
		})
		require.NoError(t, err)

		var (
			wg       sync.WaitGroup
			admitted atomic.Int32
		)
		for range 2 * n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if dec, _ := l.Allow(ctx, "concurrent"); dec.Allowed {
					admitted.Add(1)
				}
			}()
		}
		wg.Wait()

		require.EqualValues(t, n, admitted.Load())
	})
}
