package httpx

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/LiaiZenApp/liazen-api/pkg/ratelimit"
	"github.com/LiaiZenApp/liazen-api/pkg/slogx"
)

// Limiter is the part of *ratelimit.Limiter the middleware needs.
type Limiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

// RateLimit creates a rate limiting middleware. The keyExtractor determines
// how requests are grouped; requests without a key are let through.
func RateLimit(limiter Limiter, keyExtractor KeyExtractor) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			key := keyExtractor(r)
			if key == "" {
				log.Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			dec, err := limiter.Allow(ctx, key)
			SetRateLimitHeaders(w, dec)

			var exceeded *ratelimit.ExceededError
			switch {
			case errors.As(err, &exceeded):
				log.Warn("rate limit exceeded",
					"key", key,
					"endpoint", r.URL.Path,
					"windows", exceeded.Windows,
					"retry_after", exceeded.RetryAfterSeconds(),
				)
				WriteRateLimited(w, exceeded)
				return
			case err != nil:
				log.Warn("rate limiter unavailable, allowing request", "error", err)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SetRateLimitHeaders reports the most constrained window to the client.
func SetRateLimitHeaders(w http.ResponseWriter, dec ratelimit.Decision) {
	if dec.Limit <= 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(dec.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(dec.Remaining, 10))
}

// WriteRateLimited writes a 429 with Retry-After in whole seconds.
func WriteRateLimited(w http.ResponseWriter, exceeded *ratelimit.ExceededError) {
	w.Header().Set("Retry-After", strconv.Itoa(exceeded.RetryAfterSeconds()))
	WriteError(w, http.StatusTooManyRequests,
		"rate_limit_exceeded", "Too many requests. Please try again later.")
}
