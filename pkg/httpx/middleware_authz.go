package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/LiaiZenApp/liazen-api/pkg/authn"
	"github.com/LiaiZenApp/liazen-api/pkg/jwtx"
)

// Authorizer checks role membership. *authn.Resolver implements it.
type Authorizer interface {
	Authorize(ctx context.Context, p *jwtx.Principal, role string) error
}

// RequireRole lets the request through only when the principal placed in
// the context by Authenticate holds role. It must run after Authenticate.
func RequireRole(az Authorizer, role string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := az.Authorize(r.Context(), PrincipalFrom(r.Context()), role)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, authn.ErrForbidden):
				WriteError(w, http.StatusForbidden, "insufficient_role", "Insufficient permissions")
			default:
				WriteUnauthenticated(w)
			}
		})
	}
}
