package jwtx

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Defaults for KeyCacheConfig.
const (
	DefaultKeyCacheTTL      = 15 * time.Minute
	DefaultKeyMaxStale      = time.Hour
	DefaultKeyFetchTimeout  = 5 * time.Second
	DefaultMissRefreshEvery = 10 * time.Second
)

// SigningKey is one verification key published by the identity provider.
type SigningKey struct {
	KeyID     string
	Algorithm string
	Public    crypto.PublicKey
	FetchedAt time.Time
}

// KeyFetcher retrieves the provider's complete key set.
type KeyFetcher interface {
	Fetch(ctx context.Context) ([]SigningKey, error)
}

// KeySource resolves a key id to a verification key.
type KeySource interface {
	Get(ctx context.Context, kid string) (SigningKey, error)
}

// KeyCacheConfig configures a KeyCache.
type KeyCacheConfig struct {
	Fetcher KeyFetcher

	// TTL is how long a fetched set is served without refreshing.
	TTL time.Duration

	// MaxStale bounds how long a set may still be used when refreshes keep
	// failing. Past it, lookups fail closed.
	MaxStale time.Duration

	// FetchTimeout bounds a single fetch.
	FetchTimeout time.Duration

	// MissRefreshEvery throttles refreshes forced by unknown key ids while
	// the cached set is still fresh.
	MissRefreshEvery time.Duration

	// OnFetch is called after every fetch attempt.
	OnFetch func(keys int, err error)

	Logger *slog.Logger
	Now    func() time.Time
}

// KeyCache is an in-process mirror of the provider's published keys.
//
// Lookups take a read lock. A refresh replaces the whole set at once and is
// coalesced: concurrent callers share one in-flight fetch. A failed refresh
// keeps the previous set usable until MaxStale has passed.
type KeyCache struct {
	fetcher      KeyFetcher
	ttl          time.Duration
	maxStale     time.Duration
	fetchTimeout time.Duration
	onFetch      func(int, error)
	logger       *slog.Logger
	now          func() time.Time

	mu        sync.RWMutex
	keys      map[string]SigningKey
	fetchedAt time.Time

	group       singleflight.Group
	missLimiter *rate.Limiter
}

// NewKeyCache returns an empty cache. Nothing is fetched until the first
// lookup or an explicit Refresh.
func NewKeyCache(cfg KeyCacheConfig) (*KeyCache, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("jwtx: key cache requires a fetcher")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultKeyCacheTTL
	}
	if cfg.MaxStale <= 0 {
		cfg.MaxStale = DefaultKeyMaxStale
	}
	if cfg.MaxStale < cfg.TTL {
		cfg.MaxStale = cfg.TTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultKeyFetchTimeout
	}
	if cfg.MissRefreshEvery <= 0 {
		cfg.MissRefreshEvery = DefaultMissRefreshEvery
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &KeyCache{
		fetcher:      cfg.Fetcher,
		ttl:          cfg.TTL,
		maxStale:     cfg.MaxStale,
		fetchTimeout: cfg.FetchTimeout,
		onFetch:      cfg.OnFetch,
		logger:       cfg.Logger,
		now:          cfg.Now,
		keys:         make(map[string]SigningKey),
		missLimiter:  rate.NewLimiter(rate.Every(cfg.MissRefreshEvery), 1),
	}, nil
}

// Get returns the key for kid. A stale set or an unknown kid triggers a
// refresh; if no usable key exists afterwards the result is ErrUnknownKID.
func (c *KeyCache) Get(ctx context.Context, kid string) (SigningKey, error) {
	now := c.now()

	c.mu.RLock()
	key, found := c.keys[kid]
	fetchedAt := c.fetchedAt
	c.mu.RUnlock()

	fresh := !fetchedAt.IsZero() && now.Sub(fetchedAt) < c.ttl
	if fresh && found {
		return key, nil
	}
	if fresh && !c.missLimiter.AllowN(now, 1) {
		return SigningKey{}, ErrUnknownKID
	}

	refreshErr := c.refresh(ctx, fetchedAt, false)
	if refreshErr != nil {
		c.logger.WarnContext(ctx, "jwks refresh failed", "kid", kid, "error", refreshErr)
	}

	c.mu.RLock()
	key, found = c.keys[kid]
	usable := !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < c.maxStale
	c.mu.RUnlock()

	if found && usable {
		return key, nil
	}
	if refreshErr != nil {
		return SigningKey{}, fmt.Errorf("%w: %w", ErrUnknownKID, refreshErr)
	}
	return SigningKey{}, ErrUnknownKID
}

// Refresh fetches the key set now, sharing any fetch already in flight.
func (c *KeyCache) Refresh(ctx context.Context) error {
	return c.refresh(ctx, time.Time{}, true)
}

// refresh runs one coalesced fetch. Unless forced, the fetch is skipped when
// the set has been replaced since the caller observed it, so callers that
// arrive just after a fetch completed do not start another one.
func (c *KeyCache) refresh(ctx context.Context, observed time.Time, force bool) error {
	ch := c.group.DoChan("refresh", func() (any, error) {
		if !force {
			c.mu.RLock()
			replaced := !c.fetchedAt.Equal(observed)
			c.mu.RUnlock()
			if replaced {
				return nil, nil
			}
		}

		// Detached from the caller: other waiters share this fetch.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		return nil, c.fetch(fetchCtx)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrKeyFetch, ctx.Err())
	}
}

func (c *KeyCache) fetch(ctx context.Context) error {
	keys, err := c.fetcher.Fetch(ctx)
	if err == nil && len(keys) == 0 {
		err = errors.New("empty key set")
	}
	if c.onFetch != nil {
		c.onFetch(len(keys), err)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKeyFetch, err)
	}

	now := c.now()
	next := make(map[string]SigningKey, len(keys))
	for _, k := range keys {
		k.FetchedAt = now
		next[k.KeyID] = k
	}

	c.mu.Lock()
	c.keys = next
	c.fetchedAt = now
	c.mu.Unlock()

	c.logger.Debug("jwks refreshed", "keys", len(next))
	return nil
}

// FetchedAt reports when the current set was fetched.
func (c *KeyCache) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

// Len returns the number of cached keys.
func (c *KeyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}
