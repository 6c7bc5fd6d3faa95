package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/LiaiZenApp/liazen-api/internal/api/service"
	"github.com/LiaiZenApp/liazen-api/pkg/authsdk"
	"github.com/LiaiZenApp/liazen-api/pkg/httpx"
	"github.com/LiaiZenApp/liazen-api/pkg/slogx"
)

// LoginHandler serves POST /v1/auth/login.
type LoginHandler struct {
	AuthService *service.AuthService
}

// ServeHTTP godoc
//
//	@Summary		Password Login
//	@Description	Exchanges a username or email and a password for a locally issued token pair.
//	@Tags			Auth
//	@Accept			json,x-www-form-urlencoded
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"username or email, and password"
//	@Success		200		{object}	authsdk.TokenResponse	"access_token, refresh_token, token_type, expires_in, uniqueId"
//	@Failure		400		{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		401		{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		415		{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		429		{object}	authsdk.ErrorResponse	"error, error_description"
//	@Header			200		{string}	Cache-Control			"no-store"
//	@Router			/v1/auth/login [post]
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.LoginRequest
	err := decodeBody(w, r, &req, func(form url.Values) {
		req.Username = form.Get("username")
		req.Email = form.Get("email")
		req.Password = form.Get("password")
	})
	if err != nil {
		writeDecodeError(w, err)
		return
	}

	identifier := strings.TrimSpace(req.Username)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Email)
	}
	if identifier == "" || req.Password == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	res, err := h.AuthService.Login(ctx, identifier, req.Password)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		authsdk.ErrInvalidCredentials.WriteError(w)
		return
	case err != nil:
		log.Error("login failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	writeTokenResponse(w, h.AuthService, res)
}

// RefreshHandler serves POST /v1/auth/refresh.
type RefreshHandler struct {
	AuthService *service.AuthService
}

// ServeHTTP godoc
//
//	@Summary		Refresh Token Exchange
//	@Description	Exchanges a refresh token for a new token pair. Access tokens are refused.
//	@Tags			Auth
//	@Accept			json,x-www-form-urlencoded
//	@Produce		json
//	@Param			request	body		authsdk.RefreshRequest	true	"refresh token"
//	@Success		200		{object}	authsdk.TokenResponse	"access_token, refresh_token, token_type, expires_in, uniqueId"
//	@Failure		400		{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		401		{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		429		{object}	authsdk.ErrorResponse	"error, error_description"
//	@Header			200		{string}	Cache-Control			"no-store"
//	@Router			/v1/auth/refresh [post]
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.RefreshRequest
	err := decodeBody(w, r, &req, func(form url.Values) {
		req.RefreshToken = form.Get("refresh_token")
	})
	if err != nil {
		writeDecodeError(w, err)
		return
	}

	refresh := strings.TrimSpace(req.RefreshToken)
	if refresh == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	res, err := h.AuthService.Refresh(ctx, refresh)
	switch {
	case errors.Is(err, service.ErrInvalidRefresh):
		authsdk.ErrInvalidRefreshToken.WriteError(w)
		return
	case err != nil:
		log.Error("refresh failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	writeTokenResponse(w, h.AuthService, res)
}

func writeTokenResponse(w http.ResponseWriter, svc *service.AuthService, res service.LoginResult) {
	response := authsdk.TokenResponse{
		AccessToken:  res.Pair.AccessToken,
		RefreshToken: res.Pair.RefreshToken,
		TokenType:    res.Pair.TokenType,
		ExpiresIn:    int(svc.Tokens.AccessTTL().Seconds()),
		UniqueID:     res.UniqueID,
	}
	httpx.WriteJSON(w, http.StatusOK, response)
}
