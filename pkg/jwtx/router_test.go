package jwtx_test

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/LiaiZenApp/liazen-api/pkg/jwtx"
)

func TestIssuerRouter(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	local := newLocal(t, clock)

	mock, err := jwtx.NewMockVerifier(jwtx.MockConfig{Environment: "test", Now: clock.Now})
	require.NoError(t, err)

	r := &jwtx.IssuerRouter{Primary: mock, Local: local}

	t.Run("local access token", func(t *testing.T) {
		pair, err := local.Issue("user-1", []string{"user"})
		require.NoError(t, err)

		p, err := r.Verify(ctx, pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, jwtx.IssuerLocal, p.Issuer())
		require.Equal(t, "user-1", p.Subject())
	})

	t.Run("local refresh token is refused", func(t *testing.T) {
		pair, err := local.Issue("user-1", nil)
		require.NoError(t, err)

		_, err = r.Verify(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, jwtx.ErrTokenPurpose)
	})

	t.Run("opaque fixture goes to primary", func(t *testing.T) {
		p, err := r.Verify(ctx, "test-admin-token")
		require.NoError(t, err)
		require.Equal(t, jwtx.IssuerMock, p.Issuer())
		require.True(t, p.HasRole("admin"))
	})

	t.Run("without local", func(t *testing.T) {
		only := &jwtx.IssuerRouter{Primary: mock}
		p, err := only.Verify(ctx, "test-token")
		require.NoError(t, err)
		require.Equal(t, "auth0|testuser123", p.Subject())
	})
}

func TestIssuerRouter_CrossIssuerForgery(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	idp := newProvider(t, "k1")
	local := newLocal(t, clock)
	r := &jwtx.IssuerRouter{Primary: newExternal(t, idp, clock), Local: local}

	t.Run("provider key with local issuer", func(t *testing.T) {
		claims := validClaims(epoch)
		claims["iss"] = jwtx.DefaultLocalIssuer

		p, err := r.Verify(ctx, idp.sign("k1", claims))
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
		require.Nil(t, p)
	})

	t.Run("local secret with provider issuer", func(t *testing.T) {
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims(epoch)).SignedString(testSecret)
		require.NoError(t, err)

		// No kid, so the provider path refuses it before any key lookup.
		p, err := r.Verify(ctx, forged)
		require.ErrorIs(t, err, jwtx.ErrMalformed)
		require.Nil(t, p)
	})

	t.Run("genuine tokens still pass", func(t *testing.T) {
		p, err := r.Verify(ctx, idp.sign("k1", validClaims(epoch)))
		require.NoError(t, err)
		require.Equal(t, jwtx.IssuerExternal, p.Issuer())

		pair, err := local.Issue("user-1", nil)
		require.NoError(t, err)
		p, err = r.Verify(ctx, pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, jwtx.IssuerLocal, p.Issuer())
	})
}
