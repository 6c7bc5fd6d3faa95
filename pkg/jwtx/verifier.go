package jwtx

import (
	"context"
	"errors"
	"strings"
)

// Verifier validates a bearer token and returns the Principal it carries.
// The external, mock and local verifiers all satisfy it; which one serves
// requests is decided once at startup.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

var (
	ErrMalformed  = errors.New("jwtx: malformed token")
	ErrUnknownKID = errors.New("jwtx: unknown kid")
	ErrInvalidSig = errors.New("jwtx: invalid signature")
	ErrKeyFetch   = errors.New("jwtx: key fetch failed")

	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrAudience    = errors.New("jwtx: audience mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")

	ErrTokenPurpose     = errors.New("jwtx: token purpose mismatch")
	ErrInvalidRefresh   = errors.New("jwtx: invalid refresh token")
	ErrMockInProduction = errors.New("jwtx: mock verifier is not allowed in production")
)

// IsProduction reports whether env names a production deployment.
func IsProduction(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod":
		return true
	default:
		return false
	}
}
