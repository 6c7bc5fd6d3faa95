package api_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LiaiZenApp/liazen-api/internal/api/domain"
	"github.com/LiaiZenApp/liazen-api/pkg/authsdk"
)

// TestMockProviderTokens uses the fixture tokens accepted in mock mode.
func TestMockProviderTokens(t *testing.T) {
	client := setupAPI(t, nil)

	admin := client.NewSessionFromTokens("test-admin-token", "", 3600)
	me, err := admin.Me(t.Context())
	require.NoError(t, err)
	require.Equal(t, "auth0|testadmin123", me.Subject)
	require.Equal(t, "mock", me.Issuer)
	require.Equal(t, domain.UniqueID("auth0|testadmin123"), me.UniqueID)

	_, err = admin.AdminPing(t.Context())
	require.NoError(t, err)

	user := client.NewSessionFromTokens("test-token", "", 3600)
	_, err = user.AdminPing(t.Context())
	require.ErrorIs(t, err, authsdk.ErrForbidden)

	stranger := client.NewSessionFromTokens("not-a-fixture", "", 3600)
	_, err = stranger.Me(t.Context())
	require.ErrorIs(t, err, authsdk.ErrInvalidToken)
}
