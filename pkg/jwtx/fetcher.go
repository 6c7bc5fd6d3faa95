package jwtx

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4"
	"github.com/go-resty/resty/v2"
)

// HTTPKeyFetcher downloads a JWKS document over HTTP.
type HTTPKeyFetcher struct {
	url    string
	client *resty.Client
	logger *slog.Logger
}

// NewHTTPKeyFetcher returns a fetcher for the JWKS document at url.
func NewHTTPKeyFetcher(url string, timeout time.Duration, logger *slog.Logger) *HTTPKeyFetcher {
	if timeout <= 0 {
		timeout = DefaultKeyFetchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &HTTPKeyFetcher{url: url, client: client, logger: logger}
}

type jwksDocument struct {
	Keys []json.RawMessage `json:"keys"`
}

// Fetch downloads and parses the key set. Keys that cannot be used for
// signature verification are skipped rather than failing the whole set.
func (f *HTTPKeyFetcher) Fetch(ctx context.Context) ([]SigningKey, error) {
	resp, err := f.client.R().SetContext(ctx).Get(f.url)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", f.url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get %s: unexpected status %d", f.url, resp.StatusCode())
	}

	var doc jwksDocument
	if err := json.Unmarshal(resp.Body(), &doc); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}

	keys := make([]SigningKey, 0, len(doc.Keys))
	for _, raw := range doc.Keys {
		key, err := ParseJWK(raw)
		if err != nil {
			f.logger.Debug("skipping jwk", "error", err)
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// ParseJWK converts a single JSON Web Key into a SigningKey. When the key
// does not declare "alg" the algorithm is inferred from its type, and a
// declared algorithm must agree with the key type.
func ParseJWK(raw []byte) (SigningKey, error) {
	var jwk jose.JSONWebKey
	if err := jwk.UnmarshalJSON(raw); err != nil {
		return SigningKey{}, fmt.Errorf("jwk: %w", err)
	}
	if jwk.KeyID == "" {
		return SigningKey{}, errors.New("jwk: missing kid")
	}
	if jwk.Use != "" && jwk.Use != "sig" {
		return SigningKey{}, fmt.Errorf("jwk %s: use %q is not sig", jwk.KeyID, jwk.Use)
	}

	pub := jwk.Public()
	if !pub.Valid() {
		return SigningKey{}, fmt.Errorf("jwk %s: not an asymmetric key", jwk.KeyID)
	}

	alg := jwk.Algorithm
	if alg == "" {
		alg = inferAlgorithm(pub.Key)
	}
	if !algorithmMatchesKey(alg, pub.Key) {
		return SigningKey{}, fmt.Errorf("jwk %s: algorithm %q does not match key type", jwk.KeyID, alg)
	}

	return SigningKey{KeyID: jwk.KeyID, Algorithm: alg, Public: pub.Key}, nil
}

func inferAlgorithm(key any) string {
	switch k := key.(type) {
	case *rsa.PublicKey:
		return "RS256"
	case *ecdsa.PublicKey:
		switch k.Curve {
		case elliptic.P256():
			return "ES256"
		case elliptic.P384():
			return "ES384"
		case elliptic.P521():
			return "ES512"
		}
	case ed25519.PublicKey:
		return "EdDSA"
	}
	return ""
}

func algorithmMatchesKey(alg string, key any) bool {
	switch k := key.(type) {
	case *rsa.PublicKey:
		return strings.HasPrefix(alg, "RS") || strings.HasPrefix(alg, "PS")
	case *ecdsa.PublicKey:
		return alg != "" && alg == inferAlgorithm(k)
	case ed25519.PublicKey:
		return alg == "EdDSA"
	default:
		return false
	}
}

// DefaultJWKSURL is the conventional key set location for a provider domain.
func DefaultJWKSURL(domain string) string {
	return "https://" + strings.TrimSuffix(domain, "/") + "/.well-known/jwks.json"
}

// DefaultIssuer is the conventional issuer string for a provider domain.
func DefaultIssuer(domain string) string {
	return "https://" + strings.TrimSuffix(domain, "/") + "/"
}

// DiscoverJWKSURL resolves the provider's jwks_uri through OpenID Connect
// discovery.
func DiscoverJWKSURL(ctx context.Context, issuer string) (string, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return "", fmt.Errorf("jwtx: oidc discovery: %w", err)
	}

	var meta struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := provider.Claims(&meta); err != nil {
		return "", fmt.Errorf("jwtx: oidc metadata: %w", err)
	}
	if meta.JWKSURI == "" {
		return "", errors.New("jwtx: oidc metadata has no jwks_uri")
	}
	return meta.JWKSURI, nil
}
