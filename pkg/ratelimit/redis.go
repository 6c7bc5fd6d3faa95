package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript increments a window counter and sets its expiry on first use,
// in one atomic step.
var incrScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIREAT", KEYS[1], ARGV[1])
end
return n
`)

// RedisStore keeps counters in Redis so several API instances share one
// budget per key. Each window has its own key, named after the window start,
// which Redis expires once the window is over.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore returns a store using client. Keys are prefixed with prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Increment implements Store.
func (s *RedisStore) Increment(ctx context.Context, key string, window Window, now time.Time) (int64, time.Time, error) {
	start := window.Start(now)
	redisKey := fmt.Sprintf("%s%s:%d:%s", s.prefix, window, start.Unix(), key)

	// Keep the key a little past the window end to tolerate clock skew
	// between instances.
	expireAt := start.Add(window.Length() + time.Minute).UnixMilli()

	count, err := incrScript.Run(ctx, s.client, []string{redisKey}, expireAt).Int64()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis incr: %w", err)
	}
	return count, start, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
