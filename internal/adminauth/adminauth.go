// Package adminauth protects worker_manager's mutating admin endpoint
// (SPEC_FULL.md §6's POST /admin/scale): an operator passphrase is hashed
// at startup with golang.org/x/crypto/bcrypt so the raw secret is never
// kept resident, and successful logins are issued a short-lived bearer
// token signed with github.com/golang-jwt/jwt/v4.
package adminauth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrBadCredentials = errors.New("adminauth: invalid operator passphrase")
	ErrBadToken       = errors.New("adminauth: invalid or expired token")
)

const tokenTTL = 15 * time.Minute

// Authenticator verifies an operator passphrase and issues/validates
// bearer tokens scoped to worker_manager's admin endpoint.
type Authenticator struct {
	passphraseHash []byte
	signingKey     []byte
}

// New hashes passphrase once at startup. A random signing key is
// generated per process, so tokens do not survive a worker_manager
// restart — acceptable since the admin surface is a runtime knob, not a
// durable credential store.
func New(passphrase string) (*Authenticator, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("adminauth: hash passphrase: %w", err)
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("adminauth: generate signing key: %w", err)
	}
	return &Authenticator{passphraseHash: hash, signingKey: key}, nil
}

// Login checks candidate against the stored passphrase hash and, on
// success, returns a signed bearer token valid for tokenTTL.
func (a *Authenticator) Login(candidate string) (string, error) {
	if err := bcrypt.CompareHashAndPassword(a.passphraseHash, []byte(candidate)); err != nil {
		return "", ErrBadCredentials
	}
	claims := jwt.RegisteredClaims{
		Subject:   "worker_manager-admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.signingKey)
}

// Verify checks a bearer token presented on a request, returning
// ErrBadToken if it is missing, malformed, expired, or signed with a
// different key.
func (a *Authenticator) Verify(tokenString string) error {
	_, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.signingKey, nil
	})
	if err != nil {
		return ErrBadToken
	}
	return nil
}
