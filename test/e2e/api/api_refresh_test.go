package api_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LiaiZenApp/liazen-api/pkg/authsdk"
)

// TestRefreshFlow exchanges a refresh token and keeps using the session.
func TestRefreshFlow(t *testing.T) {
	client := setupAPI(t, nil)
	session := loginAdmin(t, client)

	require.NoError(t, session.Refresh(t.Context()))

	me, err := session.Me(t.Context())
	require.NoError(t, err)
	require.Equal(t, "local", me.Issuer)

	// A fresh session can be built from the refresh token alone.
	restored, err := client.AuthenticateWithRefreshToken(t.Context(), session.RefreshToken())
	require.NoError(t, err)
	require.Equal(t, session.UniqueID(), restored.UniqueID())
}

// TestRefreshTokenPurpose checks that access and refresh tokens are not
// interchangeable.
func TestRefreshTokenPurpose(t *testing.T) {
	client := setupAPI(t, nil)
	session := loginAdmin(t, client)

	_, err := client.Refresh(t.Context(), session.AccessToken())
	require.ErrorIs(t, err, authsdk.ErrInvalidRefreshToken)

	asAccess := client.NewSessionFromTokens(session.RefreshToken(), "", 3600)
	_, err = asAccess.Me(t.Context())
	require.ErrorIs(t, err, authsdk.ErrInvalidToken)
}
