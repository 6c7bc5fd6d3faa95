package jwtx

import (
	"slices"
	"time"
)

// IssuerKind names the verifier that produced a Principal.
type IssuerKind string

const (
	IssuerExternal IssuerKind = "external"
	IssuerLocal    IssuerKind = "local"
	IssuerMock     IssuerKind = "mock"
)

// Principal is the authenticated identity of one request. It is immutable
// once constructed and is never persisted.
type Principal struct {
	subject   string
	issuer    IssuerKind
	roles     []string
	claims    map[string]any
	expiresAt time.Time
}

// NewPrincipal validates the required fields and builds a Principal. A
// missing subject or expiry is reported as ErrMalformed.
func NewPrincipal(issuer IssuerKind, subject string, roles []string, claims map[string]any, expiresAt time.Time) (*Principal, error) {
	if subject == "" || expiresAt.IsZero() {
		return nil, ErrMalformed
	}

	set := make([]string, 0, len(roles))
	for _, r := range roles {
		if r != "" {
			set = append(set, r)
		}
	}
	slices.Sort(set)

	return &Principal{
		subject:   subject,
		issuer:    issuer,
		roles:     slices.Compact(set),
		claims:    cloneClaims(claims),
		expiresAt: expiresAt.UTC(),
	}, nil
}

func (p *Principal) Subject() string      { return p.subject }
func (p *Principal) Issuer() IssuerKind   { return p.issuer }
func (p *Principal) ExpiresAt() time.Time { return p.expiresAt }

// Roles returns a sorted copy of the role set.
func (p *Principal) Roles() []string { return slices.Clone(p.roles) }

// HasRole is a plain set-membership test. There is no role hierarchy.
func (p *Principal) HasRole(role string) bool {
	_, found := slices.BinarySearch(p.roles, role)
	return found
}

// Claims returns a deep copy of the verified claim set.
func (p *Principal) Claims() map[string]any { return cloneClaims(p.claims) }

// Claim returns a deep copy of a single verified claim.
func (p *Principal) Claim(name string) (any, bool) {
	v, ok := p.claims[name]
	return cloneClaim(v), ok
}

// Expired reports whether the principal is no longer valid at now.
func (p *Principal) Expired(now time.Time) bool {
	return !now.Before(p.expiresAt)
}

func cloneClaims(claims map[string]any) map[string]any {
	if claims == nil {
		return nil
	}
	out := make(map[string]any, len(claims))
	for k, v := range claims {
		out[k] = cloneClaim(v)
	}
	return out
}

// cloneClaim copies the container types produced by JSON decoding. Scalars
// are values already.
func cloneClaim(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneClaims(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneClaim(e)
		}
		return out
	case []string:
		return slices.Clone(t)
	default:
		return v
	}
}
