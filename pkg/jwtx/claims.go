package jwtx

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default lifetimes for locally issued tokens.
const (
	DefaultAccessTokenTTL  = 30 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Token purposes carried in the "purpose" claim of local tokens.
const (
	PurposeAccess  = "access"
	PurposeRefresh = "refresh"
)

// DefaultRolesClaim is where roles are read from when no claim path is
// configured.
const DefaultRolesClaim = "roles"

// ClaimExpectations are the registered-claim checks applied after the
// signature has been verified. Empty Issuer or Audience means "don't care".
type ClaimExpectations struct {
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// Validate checks exp, nbf, iss and aud against now. A token without an
// expiry is malformed.
func (e ClaimExpectations) Validate(c jwt.Claims, now time.Time) error {
	exp, err := c.GetExpirationTime()
	if err != nil || exp == nil {
		return ErrMalformed
	}
	if !now.Before(exp.Add(e.Leeway)) {
		return ErrExpired
	}

	nbf, err := c.GetNotBefore()
	if err != nil {
		return ErrMalformed
	}
	if nbf != nil && now.Before(nbf.Add(-e.Leeway)) {
		return ErrNotYetValid
	}

	if e.Issuer != "" {
		iss, err := c.GetIssuer()
		if err != nil || iss != e.Issuer {
			return ErrIssuer
		}
	}

	if e.Audience != "" {
		aud, err := c.GetAudience()
		if err != nil || !slices.Contains(aud, e.Audience) {
			return ErrAudience
		}
	}

	return nil
}

// RolesFromClaims reads the role set at path. The full path is tried as a
// single key first, so namespaced claims such as "https://example.com/roles"
// work, then as a dot-separated path into nested objects. Arrays of strings
// and space-delimited strings are accepted. Anything else yields no roles.
func RolesFromClaims(claims map[string]any, path string) []string {
	if path == "" {
		path = DefaultRolesClaim
	}

	v, ok := claims[path]
	if !ok {
		v, ok = lookupPath(claims, strings.Split(path, "."))
	}
	if !ok {
		return nil
	}

	switch roles := v.(type) {
	case string:
		return strings.Fields(roles)
	case []string:
		return slices.Clone(roles)
	case []any:
		out := make([]string, 0, len(roles))
		for _, r := range roles {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func lookupPath(m map[string]any, parts []string) (any, bool) {
	var cur any = m
	for _, p := range parts {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// principalFromClaims builds a Principal from verified map claims.
func principalFromClaims(kind IssuerKind, claims jwt.MapClaims, rolesClaim string) (*Principal, error) {
	sub, err := claims.GetSubject()
	if err != nil {
		return nil, ErrMalformed
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrMalformed
	}
	return NewPrincipal(kind, sub, RolesFromClaims(claims, rolesClaim), claims, exp.Time)
}

// classifyParseError maps a golang-jwt failure from the verifying parse onto
// the package's sentinel errors. The header and payload have already been
// decoded at this point, so anything else is a signature problem.
func classifyParseError(err error) error {
	if errors.Is(err, ErrUnknownKID) {
		return ErrUnknownKID
	}
	return fmt.Errorf("%w: %w", ErrInvalidSig, err)
}

// parseUnverified decodes header and claims without checking the signature.
func parseUnverified(raw string) (*jwt.Token, jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, _, err := jwt.NewParser().ParseUnverified(raw, claims)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return token, claims, nil
}
