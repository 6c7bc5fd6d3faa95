package httpx

import (
	"context"

	"github.com/LiaiZenApp/liazen-api/pkg/jwtx"
)

type ctxKey string

const ctxKeyPrincipal ctxKey = "principal"

// WithPrincipal stores the resolved principal in ctx.
func WithPrincipal(ctx context.Context, p *jwtx.Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

// PrincipalFrom returns the principal stored by Authenticate or
// OptionalAuth, or nil for anonymous requests.
func PrincipalFrom(ctx context.Context) *jwtx.Principal {
	p, _ := ctx.Value(ctxKeyPrincipal).(*jwtx.Principal)
	return p
}
