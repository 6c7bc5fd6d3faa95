package domain

import (
	"crypto/md5"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           string // UUID, see UniqueID
	Username     string
	Email        string // optional
	PasswordHash string // argon2id PHC, or legacy bcrypt until the next login
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}

// UniqueID derives the stable user identifier for a token subject: the raw
// MD5 digest of the subject read as UUID bytes, with no namespace and no
// version bits. Existing user records are keyed by this value.
func UniqueID(subject string) string {
	return uuid.UUID(md5.Sum([]byte(subject))).String()
}
