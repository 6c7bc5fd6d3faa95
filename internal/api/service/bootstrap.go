package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/LiaiZenApp/liazen-api/internal/api/domain"
	"github.com/LiaiZenApp/liazen-api/internal/api/store"
	"github.com/LiaiZenApp/liazen-api/pkg/cryptox"
	"github.com/LiaiZenApp/liazen-api/pkg/slogx"
)

// generatedPasswordLength is used when no bootstrap password is configured.
const generatedPasswordLength = 24

var ErrBootstrapAlready = errors.New("system already bootstrapped")

type BootstrapService struct {
	Store  store.Store
	Hasher *cryptox.Hasher
}

// EnsureAdmin creates the first user with the admin role when the user table
// is empty. When password is empty one is generated and returned; it is
// never logged. It returns ErrBootstrapAlready when users exist.
func (s *BootstrapService) EnsureAdmin(ctx context.Context, username, password string) (generated string, err error) {
	l := slogx.FromContext(ctx)

	if password == "" {
		password, err = cryptox.GeneratePassword(generatedPasswordLength)
		if err != nil {
			return "", err
		}
		generated = password
	}

	var adminID string
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		empty, err := tx.Users().IsEmpty(ctx)
		if err != nil {
			return err
		}
		if !empty {
			return ErrBootstrapAlready
		}

		u, err := createUser(ctx, tx.Users(), s.Hasher, NewUser{
			Username: username,
			Password: password,
			Roles:    []string{domain.RoleUser, domain.RoleAdmin},
		})
		if err != nil {
			return err
		}
		adminID = u.ID
		return nil
	})
	if err != nil {
		return "", err
	}

	l.Info("bootstrap admin created", slog.String("admin_user_id", adminID), slog.String("username", username))
	return generated, nil
}
