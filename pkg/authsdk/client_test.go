package authsdk_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LiaiZenApp/liazen-api/pkg/authsdk"
)

// fakeAPI mimics the login, refresh and me endpoints.
type fakeAPI struct {
	refreshes atomic.Int32
	expiresIn int
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req authsdk.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			authsdk.ErrInvalidRequest.WriteError(w)
			return
		}
		switch {
		case req.Username == "limited":
			e := *authsdk.ErrRateLimited
			e.RetryAfter = 42 * time.Second
			e.WriteError(w)
		case req.Username != "alice" || req.Password != "s3cret":
			authsdk.ErrInvalidCredentials.WriteError(w)
		default:
			writeJSON(w, authsdk.TokenResponse{
				AccessToken:  "access-0",
				RefreshToken: "refresh-0",
				TokenType:    "bearer",
				ExpiresIn:    f.expiresIn,
				UniqueID:     "uid-alice",
			})
		}
	})

	mux.HandleFunc("POST /v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var req authsdk.RefreshRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.RefreshToken == "" || req.RefreshToken == "revoked" {
			authsdk.ErrInvalidRefreshToken.WriteError(w)
			return
		}
		f.refreshes.Add(1)
		writeJSON(w, authsdk.TokenResponse{
			AccessToken:  "access-refreshed",
			RefreshToken: "refresh-1",
			TokenType:    "bearer",
			ExpiresIn:    3600,
		})
	})

	mux.HandleFunc("GET /v1/me", func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer access-0", "Bearer access-refreshed":
			writeJSON(w, authsdk.MeResponse{Subject: "alice", Issuer: "local", Roles: []string{"user"}})
		default:
			authsdk.ErrInvalidToken.WriteError(w)
		}
	})

	mux.HandleFunc("GET /v1/admin/ping", func(w http.ResponseWriter, r *http.Request) {
		authsdk.ErrForbidden.WriteError(w)
	})

	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, authsdk.HealthResponse{Status: "ok"})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newClient(t *testing.T, expiresIn int) (*authsdk.SDKClient, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{expiresIn: expiresIn}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	return authsdk.NewSDKClient(srv.URL + "/"), api
}

func TestLogin(t *testing.T) {
	client, _ := newClient(t, 1800)
	ctx := t.Context()

	t.Run("success", func(t *testing.T) {
		resp, err := client.Login(ctx, authsdk.LoginRequest{Username: "alice", Password: "s3cret"})
		require.NoError(t, err)
		require.Equal(t, "access-0", resp.AccessToken)
		require.Equal(t, "uid-alice", resp.UniqueID)
		require.Equal(t, 1800, resp.ExpiresIn)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		_, err := client.Login(ctx, authsdk.LoginRequest{Username: "alice", Password: "nope"})
		require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)
		require.NotErrorIs(t, err, authsdk.ErrInvalidToken)
	})

	t.Run("rate limited carries retry after", func(t *testing.T) {
		_, err := client.Login(ctx, authsdk.LoginRequest{Username: "limited", Password: "x"})
		var apiErr *authsdk.APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
		require.Equal(t, 42*time.Second, apiErr.RetryAfter)
	})
}

func TestRefresh(t *testing.T) {
	client, _ := newClient(t, 1800)

	resp, err := client.Refresh(t.Context(), "refresh-0")
	require.NoError(t, err)
	require.Equal(t, "refresh-1", resp.RefreshToken)

	_, err = client.Refresh(t.Context(), "revoked")
	require.ErrorIs(t, err, authsdk.ErrInvalidRefreshToken)
}

func TestSession_AutoRefresh(t *testing.T) {
	// A lifetime shorter than the refresh buffer is already stale.
	client, api := newClient(t, 10)
	ctx := t.Context()

	session, err := client.AuthenticateWithPassword(ctx, "alice", "s3cret")
	require.NoError(t, err)
	require.Equal(t, "uid-alice", session.UniqueID())

	me, err := session.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "alice", me.Subject)
	require.EqualValues(t, 1, api.refreshes.Load())
	require.Equal(t, "access-refreshed", session.AccessToken())
	require.Equal(t, "uid-alice", session.UniqueID())

	// The refreshed pair is valid for an hour; no further refresh.
	_, err = session.Me(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, api.refreshes.Load())
}

func TestSession_NoRefreshToken(t *testing.T) {
	client, _ := newClient(t, 1800)
	session := client.NewSessionFromTokens("provider-token", "", 0)

	_, err := session.Me(t.Context())
	require.ErrorContains(t, err, "no refresh token")
}

func TestSession_Forbidden(t *testing.T) {
	client, _ := newClient(t, 1800)
	session, err := client.AuthenticateWithPassword(t.Context(), "alice", "s3cret")
	require.NoError(t, err)

	_, err = session.AdminPing(t.Context())
	require.ErrorIs(t, err, authsdk.ErrForbidden)
}

func TestGetLiveness(t *testing.T) {
	client, _ := newClient(t, 1800)
	health, err := client.GetLiveness(t.Context())
	require.NoError(t, err)
	require.Equal(t, "ok", health.Status)
}
