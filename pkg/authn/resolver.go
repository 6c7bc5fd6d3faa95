// Package authn answers, for one request, who is calling, with which roles,
// and whether they are still within their request budget.
package authn

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/LiaiZenApp/liazen-api/pkg/cryptox"
	"github.com/LiaiZenApp/liazen-api/pkg/jwtx"
	"github.com/LiaiZenApp/liazen-api/pkg/ratelimit"
	"github.com/LiaiZenApp/liazen-api/pkg/slogx"
)

// Outcomes reported to a Recorder.
const (
	OutcomeAuthenticated   = "authenticated"
	OutcomeAnonymous       = "anonymous"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeForbidden       = "forbidden"
	OutcomeRateLimited     = "rate_limited"
)

// Recorder receives resolution outcomes, typically for metrics.
type Recorder interface {
	RecordAuth(ctx context.Context, outcome string, issuer jwtx.IssuerKind)
}

// RateLimiter is the part of *ratelimit.Limiter the resolver needs.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

// Config configures a Resolver.
type Config struct {
	// Verifier is fixed at startup; requests cannot choose it.
	Verifier jwtx.Verifier

	// Limiter is optional. Without it nothing is throttled.
	Limiter RateLimiter

	Recorder Recorder
}

// Resolver turns an Authorization header into a Principal and applies the
// rate limit.
type Resolver struct {
	verifier jwtx.Verifier
	limiter  RateLimiter
	recorder Recorder
}

// Result is a successful resolution. Principal is nil for anonymous callers
// on public routes.
type Result struct {
	Principal *jwtx.Principal
	RateLimit ratelimit.Decision
}

// NewResolver returns a Resolver.
func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.Verifier == nil {
		return nil, errors.New("authn: verifier is required")
	}
	return &Resolver{
		verifier: cfg.Verifier,
		limiter:  cfg.Limiter,
		recorder: cfg.Recorder,
	}, nil
}

// Resolve authenticates the caller and charges one request to its budget.
//
// With required set, a missing, malformed or invalid token fails with an
// error matching ErrUnauthenticated. Otherwise such callers proceed
// anonymously and are throttled by clientIP. A budget overrun fails with a
// *ratelimit.ExceededError, which never matches ErrUnauthenticated.
func (r *Resolver) Resolve(ctx context.Context, authorization, clientIP string, required bool) (Result, error) {
	log := slogx.FromContext(ctx)

	var principal *jwtx.Principal
	token, ok := BearerToken(authorization)
	switch {
	case ok:
		p, err := r.verifier.Verify(ctx, token)
		if err == nil {
			principal = p
			break
		}
		log.InfoContext(ctx, "token rejected",
			"reason", err,
			"token_fp", cryptox.FingerprintToken(token),
			"required", required,
		)
		if required {
			r.record(ctx, OutcomeUnauthenticated, "")
			return Result{}, unauthenticated(err)
		}
	case required:
		r.record(ctx, OutcomeUnauthenticated, "")
		if authorization == "" {
			return Result{}, unauthenticated(errors.New("missing authorization header"))
		}
		return Result{}, unauthenticated(errors.New("malformed authorization header"))
	}

	res := Result{Principal: principal}
	if r.limiter != nil {
		dec, err := r.limiter.Allow(ctx, RateLimitKey(principal, clientIP))
		res.RateLimit = dec
		var exceeded *ratelimit.ExceededError
		switch {
		case errors.As(err, &exceeded):
			r.record(ctx, OutcomeRateLimited, issuerOf(principal))
			return res, err
		case err != nil:
			log.WarnContext(ctx, "rate limiter unavailable, allowing request", "error", err)
		}
	}

	if principal == nil {
		r.record(ctx, OutcomeAnonymous, "")
	} else {
		r.record(ctx, OutcomeAuthenticated, principal.Issuer())
	}
	return res, nil
}

// Authorize requires principal to hold role. It is a pure membership test.
func (r *Resolver) Authorize(ctx context.Context, principal *jwtx.Principal, role string) error {
	err := Authorize(principal, role)
	if errors.Is(err, ErrForbidden) {
		r.record(ctx, OutcomeForbidden, principal.Issuer())
	}
	return err
}

// Authorize requires principal to hold role. A nil principal is
// unauthenticated, never forbidden.
func Authorize(principal *jwtx.Principal, role string) error {
	if principal == nil {
		return unauthenticated(errors.New("no principal"))
	}
	if !principal.HasRole(role) {
		return fmt.Errorf("%w: role %q required", ErrForbidden, role)
	}
	return nil
}

// RateLimitKey keys the budget by subject, or by client address for
// anonymous callers.
func RateLimitKey(principal *jwtx.Principal, clientIP string) string {
	if principal != nil {
		return "sub:" + principal.Subject()
	}
	if clientIP == "" {
		clientIP = "unknown"
	}
	return "ip:" + clientIP
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is case-insensitive.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

func (r *Resolver) record(ctx context.Context, outcome string, issuer jwtx.IssuerKind) {
	if r.recorder != nil {
		r.recorder.RecordAuth(ctx, outcome, issuer)
	}
}

func issuerOf(p *jwtx.Principal) jwtx.IssuerKind {
	if p == nil {
		return ""
	}
	return p.Issuer()
}
