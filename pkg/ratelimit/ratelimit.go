// Package ratelimit bounds request rates per key across a per-minute and a
// per-hour fixed window.
//
// Counting is fixed-window: counters reset at wall-clock window boundaries.
// A client that spends its whole budget just before a boundary and again
// just after it can briefly reach twice the configured average rate. That is
// a known approximation of this scheme, not a defect.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Window is a counting interval kind.
type Window string

const (
	PerMinute Window = "per_minute"
	PerHour   Window = "per_hour"
)

// Length returns the duration of the window.
func (w Window) Length() time.Duration {
	switch w {
	case PerMinute:
		return time.Minute
	case PerHour:
		return time.Hour
	default:
		return 0
	}
}

// Start returns the start of the window that contains now.
func (w Window) Start(now time.Time) time.Time {
	return now.Truncate(w.Length())
}

// Limits are the ceilings per window. Zero disables a window.
type Limits struct {
	PerMinute int
	PerHour   int
}

type windowLimit struct {
	window Window
	limit  int64
}

func (l Limits) windows() []windowLimit {
	var out []windowLimit
	if l.PerMinute > 0 {
		out = append(out, windowLimit{PerMinute, int64(l.PerMinute)})
	}
	if l.PerHour > 0 {
		out = append(out, windowLimit{PerHour, int64(l.PerHour)})
	}
	return out
}

// Store holds the counters. Increment must be atomic per (key, window):
// concurrent callers for the same key observe distinct counts.
type Store interface {
	// Increment adds one to the counter of key in the window containing now,
	// starting a fresh window when the previous one has elapsed, and returns
	// the post-increment count with the window start.
	Increment(ctx context.Context, key string, window Window, now time.Time) (count int64, windowStart time.Time, err error)
}

// ErrLimitExceeded matches every *ExceededError.
var ErrLimitExceeded = errors.New("ratelimit: limit exceeded")

// ExceededError reports which windows were exceeded and how long to wait.
type ExceededError struct {
	Windows    []Window
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("ratelimit: %v limit exceeded, retry after %s", e.Windows, e.RetryAfter)
}

func (e *ExceededError) Is(target error) bool { return target == ErrLimitExceeded }

// RetryAfterSeconds is the wait in whole seconds, at least 1.
func (e *ExceededError) RetryAfterSeconds() int {
	return max(int(e.RetryAfter/time.Second), 1)
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed bool

	// Limit and Remaining describe the most constrained window.
	Limit     int64
	Remaining int64

	RetryAfter time.Duration
}

// Config configures a Limiter.
type Config struct {
	Store  Store
	Limits Limits

	// Namespace prefixes every key so several limiters can share a store.
	Namespace string

	Now func() time.Time
}

// Limiter applies Limits to keys using a Store.
type Limiter struct {
	store     Store
	windows   []windowLimit
	namespace string
	now       func() time.Time
}

// New returns a Limiter.
func New(cfg Config) (*Limiter, error) {
	if cfg.Store == nil {
		return nil, errors.New("ratelimit: store is required")
	}
	if cfg.Limits.PerMinute < 0 || cfg.Limits.PerHour < 0 {
		return nil, errors.New("ratelimit: limits must not be negative")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Limiter{
		store:     cfg.Store,
		windows:   cfg.Limits.windows(),
		namespace: cfg.Namespace,
		now:       cfg.Now,
	}, nil
}

// Allow counts one request for key against every configured window. When
// any window is over its limit the request is rejected with an
// *ExceededError whose RetryAfter is the longest wait among the exceeded
// windows.
//
// Store failures do not reject the request: the returned Decision allows it
// and the error is returned alongside for the caller to log.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	if l.namespace != "" {
		key = l.namespace + ":" + key
	}

	dec := Decision{Allowed: true, Remaining: -1}
	var (
		exceeded []Window
		storeErr error
	)

	for _, wl := range l.windows {
		count, start, err := l.store.Increment(ctx, key, wl.window, now)
		if err != nil {
			storeErr = errors.Join(storeErr, fmt.Errorf("ratelimit: %s: %w", wl.window, err))
			continue
		}

		remaining := max(wl.limit-count, 0)
		if dec.Remaining < 0 || remaining < dec.Remaining {
			dec.Limit, dec.Remaining = wl.limit, remaining
		}

		if count > wl.limit {
			exceeded = append(exceeded, wl.window)
			dec.RetryAfter = max(dec.RetryAfter, retryAfter(start.Add(wl.window.Length()), now))
		}
	}

	if len(exceeded) > 0 {
		dec.Allowed = false
		return dec, &ExceededError{Windows: exceeded, RetryAfter: dec.RetryAfter}
	}
	if dec.Remaining < 0 {
		dec.Remaining = 0
	}
	return dec, storeErr
}

// retryAfter rounds the wait until reset up to whole seconds, at least one.
func retryAfter(reset, now time.Time) time.Duration {
	d := reset.Sub(now)
	if d <= 0 {
		return time.Second
	}
	return ((d + time.Second - 1) / time.Second) * time.Second
}
