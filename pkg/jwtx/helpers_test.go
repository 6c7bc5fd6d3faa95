package jwtx_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://liazen.test.auth0.com/"
	testAudience = "https://api.liazen.app"
)

var epoch = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: epoch} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// provider is a fake identity provider publishing RSA keys over HTTP.
type provider struct {
	t      *testing.T
	server *httptest.Server

	mu   sync.Mutex
	keys map[string]*rsa.PrivateKey

	hits   atomic.Int32
	status atomic.Int32
}

func newProvider(t *testing.T, kids ...string) *provider {
	t.Helper()

	p := &provider{t: t, keys: make(map[string]*rsa.PrivateKey)}
	p.status.Store(http.StatusOK)
	for _, kid := range kids {
		p.rotate(kid)
	}

	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.hits.Add(1)
		if code := int(p.status.Load()); code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(p.jwks())
	}))
	t.Cleanup(p.server.Close)
	return p
}

func (p *provider) URL() string { return p.server.URL + "/.well-known/jwks.json" }

// rotate adds a fresh key under kid.
func (p *provider) rotate(kid string) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(p.t, err)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys[kid] = key
}

func (p *provider) remove(kid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.keys, kid)
}

func (p *provider) key(kid string) *rsa.PrivateKey {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.keys[kid]
}

func (p *provider) jwks() jose.JSONWebKeySet {
	p.mu.Lock()
	defer p.mu.Unlock()

	var set jose.JSONWebKeySet
	for kid, key := range p.keys {
		set.Keys = append(set.Keys, jose.JSONWebKey{
			Key:       &key.PublicKey,
			KeyID:     kid,
			Algorithm: "RS256",
			Use:       "sig",
		})
	}
	return set
}

// sign issues an RS256 token with the key registered under kid.
func (p *provider) sign(kid string, claims jwt.MapClaims) string {
	p.t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(p.key(kid))
	require.NoError(p.t, err)
	return signed
}

func validClaims(now time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":                      testIssuer,
		"aud":                      []string{testAudience, testIssuer + "userinfo"},
		"sub":                      "auth0|user-1",
		"iat":                      unix(now),
		"exp":                      unix(now.Add(time.Hour)),
		"https://liazen.app/roles": []string{"user", "admin"},
	}
}

// tamperSignature flips one character in the middle of the signature segment.
func tamperSignature(token string) string {
	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	i := len(sig) / 2
	if sig[i] == 'A' {
		sig[i] = 'B'
	} else {
		sig[i] = 'A'
	}
	parts[2] = string(sig)
	return strings.Join(parts, ".")
}

// unix returns t as a JSON-style numeric date, the form MapClaims holds
// after decoding.
func unix(t time.Time) float64 { return float64(t.Unix()) }
