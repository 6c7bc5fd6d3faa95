package jwtx

import (
	"context"
	"slices"
	"time"
)

// MockIdentity is a fixture returned for a recognised test token.
type MockIdentity struct {
	Subject string
	Roles   []string
}

// DefaultMockFixtures are the test tokens accepted out of the box.
var DefaultMockFixtures = map[string]MockIdentity{
	"test-token":       {Subject: "auth0|testuser123", Roles: []string{"user"}},
	"test-admin-token": {Subject: "auth0|testadmin123", Roles: []string{"user", "admin"}},
}

// MockConfig configures a MockVerifier.
type MockConfig struct {
	// Environment is the running deployment environment. Production is
	// refused.
	Environment string

	// Fixtures maps literal tokens to identities. Nil uses
	// DefaultMockFixtures.
	Fixtures map[string]MockIdentity

	// FixtureTTL is how long a fixture principal stays valid after
	// verification.
	FixtureTTL time.Duration

	RolesClaim string
	Now        func() time.Time
}

// MockVerifier authenticates without any network access or signature
// checks. It exists for local development and tests only.
type MockVerifier struct {
	fixtures   map[string]MockIdentity
	fixtureTTL time.Duration
	rolesClaim string
	now        func() time.Time
}

// NewMockVerifier returns a MockVerifier, or ErrMockInProduction when the
// environment is production.
func NewMockVerifier(cfg MockConfig) (*MockVerifier, error) {
	if IsProduction(cfg.Environment) {
		return nil, ErrMockInProduction
	}
	if cfg.Fixtures == nil {
		cfg.Fixtures = DefaultMockFixtures
	}
	if cfg.FixtureTTL <= 0 {
		cfg.FixtureTTL = time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &MockVerifier{
		fixtures:   cfg.Fixtures,
		fixtureTTL: cfg.FixtureTTL,
		rolesClaim: cfg.RolesClaim,
		now:        cfg.Now,
	}, nil
}

// Verify accepts a fixture token, or decodes any well-formed JWT without
// checking its signature. Expiry is still enforced.
func (v *MockVerifier) Verify(_ context.Context, raw string) (*Principal, error) {
	now := v.now()

	if id, ok := v.fixtures[raw]; ok {
		exp := now.Add(v.fixtureTTL)
		claims := map[string]any{
			"sub":   id.Subject,
			"roles": slices.Clone(id.Roles),
			"exp":   float64(exp.Unix()),
		}
		return NewPrincipal(IssuerMock, id.Subject, id.Roles, claims, exp)
	}

	_, claims, err := parseUnverified(raw)
	if err != nil {
		return nil, err
	}
	if err := (ClaimExpectations{}).Validate(claims, now); err != nil {
		return nil, err
	}
	return principalFromClaims(IssuerMock, claims, v.rolesClaim)
}
