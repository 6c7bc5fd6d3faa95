package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Default Argon2id parameters.
const (
	DefaultMemory      = 19 * 1024 // KiB
	DefaultIterations  = 2
	DefaultParallelism = 1

	keyLength  = 32
	saltLength = 16

	// bcrypt only reads the first 72 bytes of its input.
	bcryptMaxInput = 72
)

// ErrWeakInput is returned when asked to hash an empty password.
var ErrWeakInput = errors.New("cryptox: password must not be empty")

// Hasher produces and verifies Argon2id password hashes in PHC format:
//
//	$argon2id$v=19$m=<memory>,t=<iterations>,p=<parallelism>$<salt>$<hash>
//
// A fresh random salt is drawn for every call to Hash. Verification also
// accepts legacy bcrypt hashes so existing accounts keep working; callers
// should use NeedsRehash to migrate them after a successful login.
//
// Hasher is safe for concurrent use.
type Hasher struct {
	// Pepper is appended to the password before hashing. It is never stored
	// alongside the hash.
	Pepper []byte

	Memory      uint32
	Iterations  uint32
	Parallelism uint8
}

// NewHasher returns a Hasher with the default parameters and the given pepper.
func NewHasher(pepper []byte) *Hasher {
	return &Hasher{
		Pepper:      pepper,
		Memory:      DefaultMemory,
		Iterations:  DefaultIterations,
		Parallelism: DefaultParallelism,
	}
}

func (h *Hasher) params() (mem, iters uint32, par uint8) {
	mem, iters, par = h.Memory, h.Iterations, h.Parallelism
	if mem == 0 {
		mem = DefaultMemory
	}
	if iters == 0 {
		iters = DefaultIterations
	}
	if par == 0 {
		par = DefaultParallelism
	}
	return mem, iters, par
}

func (h *Hasher) peppered(password string) []byte {
	buf := make([]byte, 0, len(password)+len(h.Pepper))
	buf = append(buf, password...)
	return append(buf, h.Pepper...)
}

// Hash returns a salted Argon2id hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrWeakInput
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("cryptox: generate salt: %w", err)
	}

	mem, iters, par := h.params()
	sum := argon2.IDKey(h.peppered(password), salt, iters, mem, par, keyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		mem,
		iters,
		par,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// Verify reports whether password matches encoded. A malformed or
// unrecognised encoded hash never matches.
func (h *Hasher) Verify(password, encoded string) bool {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		return h.verifyArgon2id(password, encoded)
	case isBcrypt(encoded):
		return verifyBcrypt(password, encoded)
	default:
		return false
	}
}

// NeedsRehash reports whether encoded should be replaced with a fresh hash
// using the current parameters.
func (h *Hasher) NeedsRehash(encoded string) bool {
	p, ok := parseArgon2id(encoded)
	if !ok {
		return true
	}
	mem, iters, par := h.params()
	return p.memory < mem || p.iterations < iters || p.parallelism < par
}

type argon2idHash struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	salt        []byte
	sum         []byte
}

// parseArgon2id splits ["", "argon2id", "v=19", "m=X,t=Y,p=Z", salt, hash].
func parseArgon2id(encoded string) (argon2idHash, bool) {
	var p argon2idHash

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, false
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.iterations, &p.parallelism); err != nil {
		return p, false
	}
	if p.memory == 0 || p.iterations == 0 || p.parallelism == 0 {
		return p, false
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(p.salt) == 0 {
		return p, false
	}
	if p.sum, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(p.sum) == 0 {
		return p, false
	}
	return p, true
}

func (h *Hasher) verifyArgon2id(password, encoded string) bool {
	p, ok := parseArgon2id(encoded)
	if !ok {
		return false
	}

	computed := argon2.IDKey(
		h.peppered(password),
		p.salt,
		p.iterations,
		p.memory,
		p.parallelism,
		uint32(len(p.sum)), // #nosec G115 - bounded by the decoded hash
	)
	return subtle.ConstantTimeCompare(computed, p.sum) == 1
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

// verifyBcrypt checks hashes written by the previous backend. Passwords
// longer than 72 bytes were hashed as their raw SHA-256 digest.
func verifyBcrypt(password, encoded string) bool {
	input := []byte(password)
	if len(input) > bcryptMaxInput {
		sum := sha256.Sum256(input)
		input = sum[:]
	}
	return bcrypt.CompareHashAndPassword([]byte(encoded), input) == nil
}

// GeneratePassword returns a random alphanumeric password of the given length.
func GeneratePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	if length <= 0 {
		return "", fmt.Errorf("cryptox: password length must be positive, got %d", length)
	}

	password := make([]byte, length)
	for i := range password {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", fmt.Errorf("cryptox: generate password: %w", err)
		}
		password[i] = charset[n.Int64()]
	}
	return string(password), nil
}
