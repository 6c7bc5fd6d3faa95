package sqlcommon

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/LiaiZenApp/liazen-api/internal/api/domain"
	"github.com/LiaiZenApp/liazen-api/internal/api/store"
)

const userColumns = `id, username, email, password_hash, roles, created_at, updated_at, last_login_at`

type usersRepo struct {
	q DBTX
	d Dialect
}

// NewUsers returns the users repository over q.
func NewUsers(q DBTX, d Dialect) store.Users {
	return &usersRepo{q: q, d: d}
}

func (r *usersRepo) getOne(ctx context.Context, where string, arg any) (domain.User, error) {
	row := r.q.QueryRowContext(ctx,
		r.d.rebind(`SELECT `+userColumns+` FROM users WHERE `+where+` = ?`), arg)

	var (
		u         domain.User
		email     sql.NullString
		roles     string
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &email, &u.PasswordHash, &roles,
		&u.CreatedAt, &u.UpdatedAt, &lastLogin)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}

	u.Email = mapNullString(email)
	u.Roles = splitAndFilter(roles)
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.getOne(ctx, "id", id)
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.getOne(ctx, "username", username)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, "email", email)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, r.d.rebind(
		`INSERT INTO users (id, username, email, password_hash, roles, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		u.ID, u.Username, mapStringNull(u.Email), u.PasswordHash,
		strings.Join(u.Roles, " "), now, now,
	)
	if err != nil && r.d.IsUniqueViolation != nil && r.d.IsUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	return r.update(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, time.Now().UTC(), userID)
}

func (r *usersRepo) UpdateRoles(ctx context.Context, userID string, roles []string) error {
	return r.update(ctx, `UPDATE users SET roles = ?, updated_at = ? WHERE id = ?`,
		strings.Join(roles, " "), time.Now().UTC(), userID)
}

func (r *usersRepo) RecordLogin(ctx context.Context, userID string) error {
	return r.update(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`,
		time.Now().UTC(), userID)
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}

// update runs a single-row update and maps zero affected rows to ErrNotFound.
func (r *usersRepo) update(ctx context.Context, query string, args ...any) error {
	res, err := r.q.ExecContext(ctx, r.d.rebind(query), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
