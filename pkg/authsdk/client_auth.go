package authsdk

import (
	"context"
	"net/http"
)

// Login exchanges credentials for a token pair.
func (c *SDKClient) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	var out TokenResponse
	resp, err := c.request(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/v1/auth/login")
	if err := decode(resp, err, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh exchanges a refresh token for a new token pair.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	var out TokenResponse
	resp, err := c.request(ctx).
		SetBody(RefreshRequest{RefreshToken: refreshToken}).
		SetResult(&out).
		Post("/v1/auth/refresh")
	if err := decode(resp, err, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
