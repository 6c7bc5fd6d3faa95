package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/LiaiZenApp/liazen-api/internal/api/domain"
	"github.com/LiaiZenApp/liazen-api/internal/api/store"
	"github.com/LiaiZenApp/liazen-api/pkg/cryptox"
	"github.com/LiaiZenApp/liazen-api/pkg/jwtx"
	"github.com/LiaiZenApp/liazen-api/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidRefresh     = errors.New("invalid_refresh_token")
	ErrInvalidUser        = errors.New("invalid_user")
)

// Login outcomes reported to a LoginRecorder.
const (
	LoginKindPassword = "password"
	LoginKindRefresh  = "refresh"

	LoginSuccess = "success"
	LoginFailure = "failure"
	LoginError   = "error"
)

// LoginRecorder receives login and refresh outcomes, typically for metrics.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, kind, outcome string)
}

// LoginResult is a freshly issued token pair for a user.
type LoginResult struct {
	Pair     jwtx.TokenPair
	UniqueID string
}

// NewUser describes a user to create.
type NewUser struct {
	Username string
	Email    string
	Password string
	Roles    []string
}

type AuthService struct {
	Store    store.Store
	Tokens   *jwtx.LocalTokens
	Hasher   *cryptox.Hasher
	Recorder LoginRecorder

	// dummyHash is verified against when the user does not exist so that
	// unknown users and wrong passwords take the same time.
	dummyHash string
}

// NewAuthService returns an AuthService.
func NewAuthService(s store.Store, tokens *jwtx.LocalTokens, hasher *cryptox.Hasher, rec LoginRecorder) (*AuthService, error) {
	if s == nil || tokens == nil || hasher == nil {
		return nil, errors.New("service: store, tokens and hasher are required")
	}
	dummy, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}
	dummyHash, err := hasher.Hash(dummy)
	if err != nil {
		return nil, err
	}
	return &AuthService{
		Store:     s,
		Tokens:    tokens,
		Hasher:    hasher,
		Recorder:  rec,
		dummyHash: dummyHash,
	}, nil
}

// Login authenticates identifier (a username or an email address) with
// password and issues a token pair. Unknown users and wrong passwords both
// fail with ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	l := slogx.FromContext(ctx)
	identifier = strings.TrimSpace(identifier)

	u, err := s.lookup(ctx, identifier)
	switch {
	case errors.Is(err, store.ErrNotFound):
		_ = s.Hasher.Verify(password, s.dummyHash)
		s.record(ctx, LoginKindPassword, LoginFailure)
		l.Info("login failed", slog.String("reason", "unknown user"))
		return LoginResult{}, ErrInvalidCredentials
	case err != nil:
		s.record(ctx, LoginKindPassword, LoginError)
		return LoginResult{}, err
	}

	if !s.Hasher.Verify(password, u.PasswordHash) {
		s.record(ctx, LoginKindPassword, LoginFailure)
		l.Info("login failed", slog.String("reason", "wrong password"), slog.String("user_id", u.ID))
		return LoginResult{}, ErrInvalidCredentials
	}

	if s.Hasher.NeedsRehash(u.PasswordHash) {
		s.rehash(ctx, u.ID, password)
	}
	if err := s.Store.Users().RecordLogin(ctx, u.ID); err != nil {
		l.Warn("failed to record login time", slog.String("user_id", u.ID), slog.Any("error", err))
	}

	pair, err := s.Tokens.Issue(u.ID, u.Roles)
	if err != nil {
		s.record(ctx, LoginKindPassword, LoginError)
		return LoginResult{}, err
	}

	s.record(ctx, LoginKindPassword, LoginSuccess)
	l.Info("login succeeded", slog.String("user_id", u.ID))
	return LoginResult{Pair: pair, UniqueID: u.ID}, nil
}

// Refresh exchanges a refresh token for a new pair. Roles are re-read from
// the store so that role changes apply at the next refresh; a deleted user
// can no longer refresh.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (LoginResult, error) {
	l := slogx.FromContext(ctx)

	subject, _, err := s.Tokens.VerifyRefresh(refreshToken)
	if err != nil {
		s.record(ctx, LoginKindRefresh, LoginFailure)
		l.Info("refresh rejected",
			slog.Any("reason", err),
			slog.String("token_fp", cryptox.FingerprintToken(refreshToken)),
		)
		return LoginResult{}, ErrInvalidRefresh
	}

	u, err := s.Store.Users().GetUserByID(ctx, subject)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.record(ctx, LoginKindRefresh, LoginFailure)
		l.Info("refresh rejected", slog.String("reason", "user no longer exists"), slog.String("user_id", subject))
		return LoginResult{}, ErrInvalidRefresh
	case err != nil:
		s.record(ctx, LoginKindRefresh, LoginError)
		return LoginResult{}, err
	}

	pair, err := s.Tokens.Issue(u.ID, u.Roles)
	if err != nil {
		s.record(ctx, LoginKindRefresh, LoginError)
		return LoginResult{}, err
	}

	s.record(ctx, LoginKindRefresh, LoginSuccess)
	return LoginResult{Pair: pair, UniqueID: u.ID}, nil
}

// CreateUser hashes the password and stores a new user. The ID is derived
// from the username.
func (s *AuthService) CreateUser(ctx context.Context, nu NewUser) (domain.User, error) {
	return createUser(ctx, s.Store.Users(), s.Hasher, nu)
}

func createUser(ctx context.Context, users store.Users, hasher *cryptox.Hasher, nu NewUser) (domain.User, error) {
	nu.Username = strings.TrimSpace(nu.Username)
	nu.Email = strings.ToLower(strings.TrimSpace(nu.Email))
	if nu.Username == "" || strings.ContainsAny(nu.Username, " @\t") {
		return domain.User{}, fmt.Errorf("%w: username must be non-empty and contain no spaces or @", ErrInvalidUser)
	}

	hash, err := hasher.Hash(nu.Password)
	if err != nil {
		return domain.User{}, err
	}

	roles := nu.Roles
	if len(roles) == 0 {
		roles = domain.DefaultRoles
	}

	u := domain.User{
		ID:           domain.UniqueID("local|" + nu.Username),
		Username:     nu.Username,
		Email:        nu.Email,
		PasswordHash: hash,
		Roles:        roles,
	}
	if err := users.CreateUser(ctx, u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (s *AuthService) lookup(ctx context.Context, identifier string) (domain.User, error) {
	if identifier == "" {
		return domain.User{}, store.ErrNotFound
	}
	if strings.Contains(identifier, "@") {
		return s.Store.Users().GetUserByEmail(ctx, strings.ToLower(identifier))
	}
	return s.Store.Users().GetUserByUsername(ctx, identifier)
}

// rehash upgrades a legacy or weaker hash. Failure only costs the upgrade.
func (s *AuthService) rehash(ctx context.Context, userID, password string) {
	l := slogx.FromContext(ctx)

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		l.Warn("password rehash failed", slog.String("user_id", userID), slog.Any("error", err))
		return
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
		l.Warn("password rehash not stored", slog.String("user_id", userID), slog.Any("error", err))
		return
	}
	l.Info("password hash upgraded", slog.String("user_id", userID))
}

func (s *AuthService) record(ctx context.Context, kind, outcome string) {
	if s.Recorder != nil {
		s.Recorder.RecordLogin(ctx, kind, outcome)
	}
}
