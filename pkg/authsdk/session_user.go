package authsdk

import (
	"context"
	"net/http"
)

// Me returns the principal the API resolved for this session.
// Automatically refreshes the access token if expired.
func (s *Session) Me(ctx context.Context) (*MeResponse, error) {
	req, err := s.authRequest(ctx)
	if err != nil {
		return nil, err
	}

	var me MeResponse
	resp, err := req.SetResult(&me).Get("/v1/me")
	if err := decode(resp, err, http.StatusOK); err != nil {
		return nil, err
	}
	return &me, nil
}

// AdminPing calls the admin-only ping endpoint.
// Requires: admin role
func (s *Session) AdminPing(ctx context.Context) (*AdminPingResponse, error) {
	req, err := s.authRequest(ctx)
	if err != nil {
		return nil, err
	}

	var out AdminPingResponse
	resp, err := req.SetResult(&out).Get("/v1/admin/ping")
	if err := decode(resp, err, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
