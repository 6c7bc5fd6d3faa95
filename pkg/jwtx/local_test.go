package jwtx_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/LiaiZenApp/liazen-api/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newLocal(t *testing.T, clock *fakeClock) *jwtx.LocalTokens {
	t.Helper()
	s, err := jwtx.NewLocalTokens(jwtx.LocalConfig{
		Secret:     testSecret,
		Algorithm:  "HS256",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		Now:        clock.Now,
	})
	require.NoError(t, err)
	return s
}

func TestNewLocalTokens_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  jwtx.LocalConfig
	}{
		{"short secret", jwtx.LocalConfig{Secret: []byte("short")}},
		{"unsupported algorithm", jwtx.LocalConfig{Secret: testSecret, Algorithm: "RS256"}},
		{"access not shorter than refresh", jwtx.LocalConfig{Secret: testSecret, AccessTTL: time.Hour, RefreshTTL: time.Hour}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := jwtx.NewLocalTokens(tt.cfg)
			require.Error(t, err)
		})
	}

	s, err := jwtx.NewLocalTokens(jwtx.LocalConfig{Secret: testSecret})
	require.NoError(t, err)
	require.Equal(t, jwtx.DefaultAccessTokenTTL, s.AccessTTL())
}

func TestLocalTokens_IssueAndVerify(t *testing.T) {
	clock := newFakeClock()
	s := newLocal(t, clock)

	pair, err := s.Issue("user-42", []string{"user", "admin"})
	require.NoError(t, err)
	require.Equal(t, "Bearer", pair.TokenType)
	require.Equal(t, epoch.Add(30*time.Minute), pair.AccessExpiresAt)
	require.Equal(t, epoch.Add(7*24*time.Hour), pair.RefreshExpiresAt)
	require.True(t, pair.AccessExpiresAt.Before(pair.RefreshExpiresAt))
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	p, err := s.Verify(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, jwtx.IssuerLocal, p.Issuer())
	require.Equal(t, "user-42", p.Subject())
	require.Equal(t, []string{"admin", "user"}, p.Roles())
	require.Equal(t, pair.AccessExpiresAt, p.ExpiresAt())

	iss, _ := p.Claim("iss")
	require.Equal(t, jwtx.DefaultLocalIssuer, iss)
	purpose, _ := p.Claim("purpose")
	require.Equal(t, jwtx.PurposeAccess, purpose)

	_, err = s.Issue("", nil)
	require.Error(t, err)
}

func TestLocalTokens_AlgorithmVariants(t *testing.T) {
	for _, alg := range []string{"HS256", "HS384", "HS512"} {
		t.Run(alg, func(t *testing.T) {
			s, err := jwtx.NewLocalTokens(jwtx.LocalConfig{Secret: testSecret, Algorithm: alg})
			require.NoError(t, err)

			pair, err := s.Issue("user-1", nil)
			require.NoError(t, err)
			_, err = s.Verify(context.Background(), pair.AccessToken)
			require.NoError(t, err)

			token, _, err := jwt.NewParser().ParseUnverified(pair.AccessToken, jwt.MapClaims{})
			require.NoError(t, err)
			require.Equal(t, alg, token.Method.Alg())
		})
	}
}

func TestLocalTokens_VerifyFailures(t *testing.T) {
	clock := newFakeClock()
	s := newLocal(t, clock)
	ctx := context.Background()

	pair, err := s.Issue("user-1", []string{"user"})
	require.NoError(t, err)

	t.Run("tampered signature", func(t *testing.T) {
		_, err := s.Verify(ctx, tamperSignature(pair.AccessToken))
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("tampered payload", func(t *testing.T) {
		parts := strings.Split(pair.AccessToken, ".")
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "user-1", "roles": []string{"admin"}, "iss": "local",
			"exp": unix(epoch.Add(time.Hour)), "purpose": "access",
		}).SignedString([]byte("attacker-secret-attacker-secret!"))
		require.NoError(t, err)
		forgedParts := strings.Split(forged, ".")

		_, err = s.Verify(ctx, parts[0]+"."+forgedParts[1]+"."+parts[2])
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := jwtx.NewLocalTokens(jwtx.LocalConfig{Secret: []byte("another-secret-another-secret-xx"), Now: clock.Now})
		require.NoError(t, err)
		otherPair, err := other.Issue("user-1", nil)
		require.NoError(t, err)

		_, err = s.Verify(ctx, otherPair.AccessToken)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("refresh token on access path", func(t *testing.T) {
		_, err := s.Verify(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, jwtx.ErrTokenPurpose)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "user-1", "iss": "external", "exp": unix(epoch.Add(time.Hour)),
		}).SignedString(testSecret)
		require.NoError(t, err)

		_, err = s.Verify(ctx, token)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := s.Verify(ctx, "a.b")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})
}

func TestLocalTokens_ExpiryBoundary(t *testing.T) {
	clock := newFakeClock()
	s := newLocal(t, clock)
	ctx := context.Background()

	pair, err := s.Issue("user-1", nil)
	require.NoError(t, err)

	clock.Advance(30*time.Minute - time.Second)
	_, err = s.Verify(ctx, pair.AccessToken)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = s.Verify(ctx, pair.AccessToken)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestLocalTokens_Refresh(t *testing.T) {
	clock := newFakeClock()
	s := newLocal(t, clock)
	ctx := context.Background()

	pair, err := s.Issue("user-1", []string{"user"})
	require.NoError(t, err)

	clock.Advance(time.Hour)
	next, err := s.Refresh(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, clock.Now().Add(30*time.Minute), next.AccessExpiresAt)

	p, err := s.Verify(ctx, next.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", p.Subject())
	require.Equal(t, []string{"user"}, p.Roles())

	// The old refresh token is not revoked.
	_, err = s.Refresh(pair.RefreshToken)
	require.NoError(t, err)
}

func TestLocalTokens_RefreshFailures(t *testing.T) {
	clock := newFakeClock()
	s := newLocal(t, clock)

	pair, err := s.Issue("user-1", nil)
	require.NoError(t, err)

	t.Run("access token", func(t *testing.T) {
		_, err := s.Refresh(pair.AccessToken)
		require.ErrorIs(t, err, jwtx.ErrInvalidRefresh)
		require.ErrorIs(t, err, jwtx.ErrTokenPurpose)
	})

	t.Run("tampered", func(t *testing.T) {
		_, err := s.Refresh(tamperSignature(pair.RefreshToken))
		require.ErrorIs(t, err, jwtx.ErrInvalidRefresh)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := s.Refresh("garbage")
		require.ErrorIs(t, err, jwtx.ErrInvalidRefresh)
	})

	t.Run("missing token id", func(t *testing.T) {
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":     "user-1",
			"iss":     jwtx.DefaultLocalIssuer,
			"iat":     epoch.Unix(),
			"exp":     epoch.Add(time.Hour).Unix(),
			"purpose": jwtx.PurposeRefresh,
		}).SignedString(testSecret)
		require.NoError(t, err)

		_, err = s.Refresh(forged)
		require.ErrorIs(t, err, jwtx.ErrInvalidRefresh)
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("expired", func(t *testing.T) {
		clock.Advance(7*24*time.Hour + time.Second)
		_, err := s.Refresh(pair.RefreshToken)
		require.ErrorIs(t, err, jwtx.ErrInvalidRefresh)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})
}
