package httpx

import (
	"errors"
	"net/http"

	"github.com/LiaiZenApp/liazen-api/pkg/authn"
	"github.com/LiaiZenApp/liazen-api/pkg/ratelimit"
	"github.com/LiaiZenApp/liazen-api/pkg/slogx"
)

// unauthenticatedDescription is the only detail a client ever sees for a
// rejected token.
const unauthenticatedDescription = "Could not validate credentials"

// Authenticate rejects requests without a valid bearer token and stores the
// principal in the request context.
func Authenticate(resolver *authn.Resolver, clientIP KeyExtractor) Middleware {
	return resolve(resolver, clientIP, true)
}

// OptionalAuth resolves a principal when a valid bearer token is present and
// lets anonymous requests through otherwise. Both are rate limited.
func OptionalAuth(resolver *authn.Resolver, clientIP KeyExtractor) Middleware {
	return resolve(resolver, clientIP, false)
}

func resolve(resolver *authn.Resolver, clientIP KeyExtractor, required bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			res, err := resolver.Resolve(ctx, r.Header.Get("Authorization"), clientIP(r), required)
			SetRateLimitHeaders(w, res.RateLimit)

			var exceeded *ratelimit.ExceededError
			switch {
			case errors.As(err, &exceeded):
				WriteRateLimited(w, exceeded)
				return
			case errors.Is(err, authn.ErrUnauthenticated):
				if _, ok := authn.BearerToken(r.Header.Get("Authorization")); !ok {
					WriteMissingCredentials(w)
					return
				}
				WriteUnauthenticated(w)
				return
			case err != nil:
				slogx.FromContext(ctx).Error("principal resolution failed", "error", err)
				WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
				return
			}

			if res.Principal != nil {
				ctx = WithPrincipal(ctx, res.Principal)
				ctx = slogx.With(ctx, "sub", res.Principal.Subject())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WriteUnauthenticated writes an RFC 6750 bearer challenge for a rejected
// token with a generic description.
func WriteUnauthenticated(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	WriteError(w, http.StatusUnauthorized, "invalid_token", unauthenticatedDescription)
}

// WriteMissingCredentials writes a bare bearer challenge for a request that
// carried no bearer token. RFC 6750 section 3.1 omits the error attribute in
// that case.
func WriteMissingCredentials(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	WriteError(w, http.StatusUnauthorized, "invalid_token", unauthenticatedDescription)
}
