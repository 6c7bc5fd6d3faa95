package authsdk

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// SDKClient is a client for the LiaiZen API.
// It provides access to unauthenticated operations and can create authenticated Sessions.
type SDKClient struct {
	BaseURL string

	http *resty.Client
}

// NewSDKClient creates a new API client.
func NewSDKClient(baseURL string) *SDKClient {
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &SDKClient{
		BaseURL: baseURL,
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10*time.Second).
			SetHeader("Accept", "application/json"),
	}
}

// AuthenticateWithPassword logs in and returns a session that refreshes
// itself.
func (c *SDKClient) AuthenticateWithPassword(ctx context.Context, username, password string) (*Session, error) {
	tokenResp, err := c.Login(ctx, LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	return newSession(c, tokenResp), nil
}

// AuthenticateWithRefreshToken creates an authenticated session from an existing refresh token.
func (c *SDKClient) AuthenticateWithRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	tokenResp, err := c.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return newSession(c, tokenResp), nil
}

// NewSessionFromTokens creates an authenticated session from existing tokens,
// for instance a token issued by the external identity provider. Without a
// refresh token the session cannot renew itself.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken string, expiresIn int) *Session {
	return newSession(c, &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	})
}
