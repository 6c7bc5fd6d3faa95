// Package sqlcommon holds the SQL shared by the sqlite and postgres drivers.
// Queries are written with ? placeholders and rebound per dialect.
package sqlcommon

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/LiaiZenApp/liazen-api/internal/api/store"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Dialect captures what differs between drivers.
type Dialect struct {
	// Rebind rewrites ? placeholders. Nil leaves the query unchanged.
	Rebind func(query string) string

	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation func(err error) bool
}

func (d Dialect) rebind(q string) string {
	if d.Rebind == nil {
		return q
	}
	return d.Rebind(q)
}

// BindDollar rewrites ? placeholders as $1, $2, ...
func BindDollar(q string) string {
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Tx is the transaction-scoped store handed to WithTx callbacks.
type Tx struct {
	q       DBTX
	dialect Dialect
}

func (t *Tx) Users() store.Users { return NewUsers(t.q, t.dialect) }

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func WithTx(ctx context.Context, db *sql.DB, d Dialect, fn func(tx store.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	// Safe to call even after commit
	defer func() { _ = tx.Rollback() }()

	if err := fn(&Tx{q: tx, dialect: d}); err != nil {
		return err
	}
	return tx.Commit()
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func mapNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func mapStringNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// splitAndFilter parses space-delimited storage, dropping duplicates.
func splitAndFilter(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Fields(s)
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		if _, ok := seen[part]; ok {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}
