package jwtx

import "context"

// IssuerRouter sends locally issued tokens to the local token service and
// every other token to the primary verifier. Both verifiers are fixed at
// startup; the unverified iss claim only chooses between them and each one
// still performs full verification.
type IssuerRouter struct {
	Primary Verifier
	Local   *LocalTokens
}

// Verify implements Verifier.
func (r *IssuerRouter) Verify(ctx context.Context, raw string) (*Principal, error) {
	if r.Local == nil {
		return r.Primary.Verify(ctx, raw)
	}

	_, claims, err := parseUnverified(raw)
	if err != nil {
		// Mock fixtures are opaque strings, so let the primary decide.
		return r.Primary.Verify(ctx, raw)
	}
	if iss, _ := claims.GetIssuer(); iss == r.Local.Issuer() {
		return r.Local.Verify(ctx, raw)
	}
	return r.Primary.Verify(ctx, raw)
}
