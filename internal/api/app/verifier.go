package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LiaiZenApp/liazen-api/pkg/cryptox"
	"github.com/LiaiZenApp/liazen-api/pkg/jwtx"
)

// NewVerifier builds the verifier selected by AUTH_MODE. The key cache is
// returned for external mode so the caller can report on it; it is nil
// otherwise.
func NewVerifier(ctx context.Context, cfg Config, logger *slog.Logger, onFetch func(keys int, err error)) (jwtx.Verifier, *jwtx.KeyCache, error) {
	switch cfg.AuthMode {
	case AuthModeMock:
		// Also refused by Validate; checked again so no caller can skip it.
		v, err := jwtx.NewMockVerifier(jwtx.MockConfig{
			Environment: cfg.Env,
			RolesClaim:  cfg.RolesClaim,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Warn("mock token verification enabled; provider signatures are not checked", "env", cfg.Env)
		return v, nil, nil

	case AuthModeExternal:
		jwksURL, err := resolveJWKSURL(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}

		cache, err := jwtx.NewKeyCache(jwtx.KeyCacheConfig{
			Fetcher:      jwtx.NewHTTPKeyFetcher(jwksURL, cfg.JWKSFetchTimeout, logger),
			TTL:          cfg.JWKSCacheTTL,
			MaxStale:     cfg.JWKSMaxStale,
			FetchTimeout: cfg.JWKSFetchTimeout,
			OnFetch:      onFetch,
			Logger:       logger,
		})
		if err != nil {
			return nil, nil, err
		}

		// Warm the cache. A failure is not fatal: lookups retry the fetch.
		if err := cache.Refresh(ctx); err != nil {
			logger.Warn("initial key set fetch failed", "jwks_url", jwksURL, "error", err)
		}

		v, err := jwtx.NewExternalVerifier(jwtx.ExternalConfig{
			Keys:       cache,
			Issuer:     cfg.Issuer(),
			Audience:   cfg.Auth0Audience,
			RolesClaim: cfg.RolesClaim,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("external token verification enabled", "issuer", cfg.Issuer(), "jwks_url", jwksURL)
		return v, cache, nil

	default:
		return nil, nil, fmt.Errorf("unknown auth mode %q", cfg.AuthMode)
	}
}

func resolveJWKSURL(ctx context.Context, cfg Config) (string, error) {
	switch {
	case cfg.JWKSURL != "":
		return cfg.JWKSURL, nil
	case cfg.JWKSDiscovery:
		return jwtx.DiscoverJWKSURL(ctx, cfg.Issuer())
	default:
		return jwtx.DefaultJWKSURL(cfg.Auth0Domain), nil
	}
}

// NewLocalTokens builds the local token service. Outside production a
// missing secret is replaced by a random one, so local tokens do not
// survive a restart.
func NewLocalTokens(cfg Config, logger *slog.Logger) (*jwtx.LocalTokens, error) {
	secret := cfg.LocalJWTSecret
	if secret == "" {
		if cfg.Production() {
			return nil, fmt.Errorf("LOCAL_JWT_SECRET is required in production")
		}
		generated, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return nil, err
		}
		secret = generated
		logger.Warn("LOCAL_JWT_SECRET not set; using a random secret for this process")
	}

	return jwtx.NewLocalTokens(jwtx.LocalConfig{
		Secret:     []byte(secret),
		Algorithm:  cfg.LocalJWTAlgorithm,
		AccessTTL:  cfg.AccessTTL(),
		RefreshTTL: cfg.RefreshTTL(),
	})
}
