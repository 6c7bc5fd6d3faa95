package jwtx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LiaiZenApp/liazen-api/pkg/idx"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultLocalIssuer is the "iss" of locally issued tokens.
const DefaultLocalIssuer = "local"

const minLocalSecretLength = 32

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	TokenType        string
}

// LocalClaims are the claims of locally issued tokens.
type LocalClaims struct {
	jwt.RegisteredClaims

	Roles   []string `json:"roles,omitempty"`
	Purpose string   `json:"purpose"`
}

// LocalConfig configures LocalTokens.
type LocalConfig struct {
	Secret []byte

	// Algorithm is one of HS256, HS384 or HS512.
	Algorithm string

	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	Now func() time.Time
}

// LocalTokens issues and verifies HMAC-signed tokens for the password login
// flow. Refresh tokens carry purpose=refresh and are refused everywhere
// except Refresh.
type LocalTokens struct {
	secret     []byte
	method     jwt.SigningMethod
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewLocalTokens validates cfg and returns a token service.
func NewLocalTokens(cfg LocalConfig) (*LocalTokens, error) {
	if len(cfg.Secret) < minLocalSecretLength {
		return nil, fmt.Errorf("jwtx: local secret must be at least %d bytes", minLocalSecretLength)
	}

	if cfg.Algorithm == "" {
		cfg.Algorithm = jwt.SigningMethodHS256.Alg()
	}
	var method jwt.SigningMethod
	switch cfg.Algorithm {
	case "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("jwtx: unsupported local algorithm %q", cfg.Algorithm)
	}

	if cfg.Issuer == "" {
		cfg.Issuer = DefaultLocalIssuer
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTokenTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTokenTTL
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return nil, errors.New("jwtx: access token lifetime must be shorter than refresh token lifetime")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &LocalTokens{
		secret:     cfg.Secret,
		method:     method,
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Now,
	}, nil
}

// AccessTTL is the lifetime of issued access tokens.
func (s *LocalTokens) AccessTTL() time.Duration { return s.accessTTL }

// Issuer is the iss claim written into every token.
func (s *LocalTokens) Issuer() string { return s.issuer }

// Issue signs a new access and refresh token for subject.
func (s *LocalTokens) Issue(subject string, roles []string) (TokenPair, error) {
	if subject == "" {
		return TokenPair{}, errors.New("jwtx: subject is required")
	}

	now := s.now().UTC()
	accessExp := now.Add(s.accessTTL)
	refreshExp := now.Add(s.refreshTTL)

	access, err := s.sign(subject, roles, PurposeAccess, now, accessExp)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(subject, roles, PurposeRefresh, now, refreshExp)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  jwt.NewNumericDate(accessExp).Time,
		RefreshExpiresAt: jwt.NewNumericDate(refreshExp).Time,
		TokenType:        "Bearer",
	}, nil
}

func (s *LocalTokens) sign(subject string, roles []string, purpose string, now, exp time.Time) (string, error) {
	claims := LocalClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        idx.NewAt(now).String(),
		},
		Roles:   roles,
		Purpose: purpose,
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign %s token: %w", purpose, err)
	}
	return signed, nil
}

// parse verifies signature and registered claims of a local token.
func (s *LocalTokens) parse(raw string) (jwt.MapClaims, error) {
	if _, _, err := parseUnverified(raw); err != nil {
		return nil, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}); err != nil {
		return nil, classifyParseError(err)
	}

	expect := ClaimExpectations{Issuer: s.issuer}
	if err := expect.Validate(claims, s.now()); err != nil {
		return nil, err
	}
	return claims, nil
}

// Verify validates an access token. Refresh tokens are rejected with
// ErrTokenPurpose.
func (s *LocalTokens) Verify(_ context.Context, raw string) (*Principal, error) {
	claims, err := s.parse(raw)
	if err != nil {
		return nil, err
	}
	if purpose, _ := claims["purpose"].(string); purpose == PurposeRefresh {
		return nil, ErrTokenPurpose
	}
	return principalFromClaims(IssuerLocal, claims, DefaultRolesClaim)
}

// VerifyRefresh validates a refresh token and returns its subject and roles.
// Every failure is reported as ErrInvalidRefresh wrapping the cause.
func (s *LocalTokens) VerifyRefresh(raw string) (subject string, roles []string, err error) {
	claims, err := s.parse(raw)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidRefresh, err)
	}
	if purpose, _ := claims["purpose"].(string); purpose != PurposeRefresh {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidRefresh, ErrTokenPurpose)
	}

	subject, err = claims.GetSubject()
	if err != nil || subject == "" {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidRefresh, ErrMalformed)
	}
	if jti, _ := claims["jti"].(string); !validTokenID(jti) {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidRefresh, ErrMalformed)
	}
	return subject, RolesFromClaims(claims, DefaultRolesClaim), nil
}

func validTokenID(jti string) bool {
	_, err := idx.Parse(jti)
	return err == nil
}

// Refresh exchanges a refresh token for a new pair. The old refresh token is
// not revoked.
func (s *LocalTokens) Refresh(raw string) (TokenPair, error) {
	subject, roles, err := s.VerifyRefresh(raw)
	if err != nil {
		return TokenPair{}, err
	}
	return s.Issue(subject, roles)
}
