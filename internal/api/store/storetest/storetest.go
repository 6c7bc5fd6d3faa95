// Package storetest is a behavioural suite every store driver must pass.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LiaiZenApp/liazen-api/internal/api/domain"
	"github.com/LiaiZenApp/liazen-api/internal/api/store"
	"github.com/LiaiZenApp/liazen-api/pkg/idx"
)

// Run exercises s, which must be migrated and empty.
func Run(t *testing.T, s store.Store) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		empty, err := s.Users().IsEmpty(ctx)
		require.NoError(t, err)
		require.True(t, empty)
	})

	alice := domain.User{
		ID:           domain.UniqueID("local|alice"),
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "$argon2id$dummy",
		Roles:        []string{"user"},
	}

	t.Run("create and get", func(t *testing.T) {
		require.NoError(t, s.Users().CreateUser(ctx, alice))

		byID, err := s.Users().GetUserByID(ctx, alice.ID)
		require.NoError(t, err)
		require.Equal(t, "alice", byID.Username)
		require.Equal(t, []string{"user"}, byID.Roles)
		require.False(t, byID.CreatedAt.IsZero())
		require.Nil(t, byID.LastLoginAt)

		byName, err := s.Users().GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, alice.ID, byName.ID)

		byEmail, err := s.Users().GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		require.Equal(t, alice.ID, byEmail.ID)

		empty, err := s.Users().IsEmpty(ctx)
		require.NoError(t, err)
		require.False(t, empty)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := s.Users().GetUserByUsername(ctx, "nobody")
		require.ErrorIs(t, err, store.ErrNotFound)

		err = s.Users().UpdatePasswordHash(ctx, "missing", "x")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("duplicate username", func(t *testing.T) {
		dup := alice
		dup.ID = idx.New().String()
		dup.Email = ""
		require.ErrorIs(t, s.Users().CreateUser(ctx, dup), store.ErrAlreadyExists)
	})

	t.Run("users without email", func(t *testing.T) {
		for _, name := range []string{"bob", "carol"} {
			require.NoError(t, s.Users().CreateUser(ctx, domain.User{
				ID:           domain.UniqueID("local|" + name),
				Username:     name,
				PasswordHash: "h",
				Roles:        domain.DefaultRoles,
			}))
		}
		bob, err := s.Users().GetUserByUsername(ctx, "bob")
		require.NoError(t, err)
		require.Empty(t, bob.Email)
	})

	t.Run("updates", func(t *testing.T) {
		require.NoError(t, s.Users().UpdatePasswordHash(ctx, alice.ID, "$argon2id$new"))
		require.NoError(t, s.Users().UpdateRoles(ctx, alice.ID, []string{"user", "admin"}))
		require.NoError(t, s.Users().RecordLogin(ctx, alice.ID))

		u, err := s.Users().GetUserByID(ctx, alice.ID)
		require.NoError(t, err)
		require.Equal(t, "$argon2id$new", u.PasswordHash)
		require.Equal(t, []string{"user", "admin"}, u.Roles)
		require.NotNil(t, u.LastLoginAt)
	})

	t.Run("transaction rollback", func(t *testing.T) {
		boom := errors.New("boom")
		err := s.WithTx(ctx, func(tx store.Tx) error {
			require.NoError(t, tx.Users().CreateUser(ctx, domain.User{
				ID: idx.New().String(), Username: "ghost", PasswordHash: "h", Roles: domain.DefaultRoles,
			}))
			return boom
		})
		require.ErrorIs(t, err, boom)

		_, err = s.Users().GetUserByUsername(ctx, "ghost")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("transaction commit", func(t *testing.T) {
		err := s.WithTx(ctx, func(tx store.Tx) error {
			return tx.Users().CreateUser(ctx, domain.User{
				ID: idx.New().String(), Username: "dave", PasswordHash: "h", Roles: domain.DefaultRoles,
			})
		})
		require.NoError(t, err)

		_, err = s.Users().GetUserByUsername(ctx, "dave")
		require.NoError(t, err)
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, s.Ping(ctx))
	})
}
