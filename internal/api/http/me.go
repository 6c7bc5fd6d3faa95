package http

import (
	"net/http"

	"github.com/LiaiZenApp/liazen-api/internal/api/domain"
	"github.com/LiaiZenApp/liazen-api/pkg/authsdk"
	"github.com/LiaiZenApp/liazen-api/pkg/httpx"
	"github.com/LiaiZenApp/liazen-api/pkg/jwtx"
)

// MeHandler godoc
//
//	@Summary		Current Principal
//	@Description	Returns the authenticated caller as resolved from the bearer token.
//	@Tags			Identity
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.MeResponse		"sub, issuer, roles, expires_at, uniqueId"
//	@Failure		401	{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		429	{object}	authsdk.ErrorResponse	"error, error_description"
//	@Router			/v1/me [get]
func MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := httpx.PrincipalFrom(r.Context())
		if p == nil {
			httpx.WriteUnauthenticated(w)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, authsdk.MeResponse{
			Subject:   p.Subject(),
			Issuer:    string(p.Issuer()),
			Roles:     p.Roles(),
			ExpiresAt: p.ExpiresAt().UTC(),
			UniqueID:  uniqueID(p),
		})
	}
}

// uniqueID is the stable user identifier. Local subjects already are one;
// provider subjects map onto the MD5 digest of the subject.
func uniqueID(p *jwtx.Principal) string {
	if p.Issuer() == jwtx.IssuerLocal {
		return p.Subject()
	}
	return domain.UniqueID(p.Subject())
}

// AdminPingHandler godoc
//
//	@Summary		Admin Role Check
//	@Description	Succeeds only for callers holding the admin role.
//	@Tags			Admin
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.AdminPingResponse	"status, sub"
//	@Failure		401	{object}	authsdk.ErrorResponse		"error, error_description"
//	@Failure		403	{object}	authsdk.ErrorResponse		"error, error_description"
//	@Failure		429	{object}	authsdk.ErrorResponse		"error, error_description"
//	@Router			/v1/admin/ping [get]
func AdminPingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := httpx.PrincipalFrom(r.Context())
		if p == nil {
			httpx.WriteUnauthenticated(w)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, authsdk.AdminPingResponse{
			Status:  "ok",
			Subject: p.Subject(),
		})
	}
}
