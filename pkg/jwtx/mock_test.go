package jwtx_test

import (
	"context"
	"testing"
	"time"

	"github.com/LiaiZenApp/liazen-api/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestNewMockVerifier_RefusesProduction(t *testing.T) {
	for _, env := range []string{"production", "prod", "Production"} {
		v, err := jwtx.NewMockVerifier(jwtx.MockConfig{Environment: env})
		require.ErrorIs(t, err, jwtx.ErrMockInProduction)
		require.Nil(t, v)
	}

	for _, env := range []string{"test", "development", "staging", ""} {
		_, err := jwtx.NewMockVerifier(jwtx.MockConfig{Environment: env})
		require.NoError(t, err)
	}
}

func TestMockVerifier_Fixtures(t *testing.T) {
	clock := newFakeClock()
	v, err := jwtx.NewMockVerifier(jwtx.MockConfig{Environment: "test", Now: clock.Now})
	require.NoError(t, err)
	ctx := context.Background()

	p, err := v.Verify(ctx, "test-token")
	require.NoError(t, err)
	require.Equal(t, jwtx.IssuerMock, p.Issuer())
	require.Equal(t, "auth0|testuser123", p.Subject())
	require.Equal(t, []string{"user"}, p.Roles())
	require.Equal(t, epoch.Add(time.Hour), p.ExpiresAt())

	admin, err := v.Verify(ctx, "test-admin-token")
	require.NoError(t, err)
	require.True(t, admin.HasRole("admin"))
}

func TestMockVerifier_FixturesNotShared(t *testing.T) {
	v, err := jwtx.NewMockVerifier(jwtx.MockConfig{Environment: "test"})
	require.NoError(t, err)
	ctx := context.Background()

	p, err := v.Verify(ctx, "test-token")
	require.NoError(t, err)
	p.Claims()["roles"].([]string)[0] = "admin"

	require.Equal(t, []string{"user"}, jwtx.DefaultMockFixtures["test-token"].Roles)

	next, err := v.Verify(ctx, "test-token")
	require.NoError(t, err)
	require.False(t, next.HasRole("admin"))
	roles, _ := next.Claim("roles")
	require.Equal(t, []string{"user"}, roles)
}

func TestMockVerifier_DecodesWithoutSignature(t *testing.T) {
	clock := newFakeClock()
	v, err := jwtx.NewMockVerifier(jwtx.MockConfig{Environment: "development", Now: clock.Now})
	require.NoError(t, err)
	ctx := context.Background()

	unsigned := func(claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		return s
	}

	t.Run("unsigned token", func(t *testing.T) {
		p, err := v.Verify(ctx, unsigned(jwt.MapClaims{
			"sub":   "dev-user",
			"exp":   unix(epoch.Add(time.Minute)),
			"roles": []string{"admin"},
		}))
		require.NoError(t, err)
		require.Equal(t, "dev-user", p.Subject())
		require.True(t, p.HasRole("admin"))
	})

	t.Run("signed with an unknown key", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "dev-user",
			"exp": unix(epoch.Add(time.Minute)),
		}).SignedString([]byte("whatever"))
		require.NoError(t, err)

		_, err = v.Verify(ctx, token)
		require.NoError(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		_, err := v.Verify(ctx, unsigned(jwt.MapClaims{"sub": "dev-user", "exp": unix(epoch.Add(-time.Second))}))
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("missing subject", func(t *testing.T) {
		_, err := v.Verify(ctx, unsigned(jwt.MapClaims{"exp": unix(epoch.Add(time.Minute))}))
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("unknown literal", func(t *testing.T) {
		_, err := v.Verify(ctx, "not-a-fixture")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})
}

func TestMockVerifier_CustomFixtures(t *testing.T) {
	v, err := jwtx.NewMockVerifier(jwtx.MockConfig{
		Environment: "test",
		Fixtures:    map[string]jwtx.MockIdentity{"alice": {Subject: "alice", Roles: []string{"user"}}},
	})
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), "alice")
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), "test-token")
	require.ErrorIs(t, err, jwtx.ErrMalformed)
}
