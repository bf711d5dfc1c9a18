// Package auth authenticates customers by JWT and back office staff by API key.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"slices"

	"github.com/go-faster/errors"
)

// ErrUnauthorized is returned for missing or invalid credentials.
var ErrUnauthorized = errors.New("unauthorized")

// ScopeAdmin grants access to the back office API.
const ScopeAdmin = "admin"

// APIKeyInfo holds the identity and permission data for a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// HasScope reports whether the key carries scope.
func (i *APIKeyInfo) HasScope(scope string) bool {
	return slices.Contains(i.Scopes, scope)
}

// Repository provides lookup and registration of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
	// Upsert stores a key hash, reactivating it when it already exists.
	Upsert(ctx context.Context, info *APIKeyInfo) error
}

// HashAPIKey returns the hex HMAC-SHA256 of key under pepper. Only hashes
// are stored.
func HashAPIKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// APIKeys authenticates raw API keys.
type APIKeys struct {
	repo   Repository
	pepper []byte
}

// NewAPIKeys creates an API key authenticator.
func NewAPIKeys(repo Repository, pepper []byte) *APIKeys {
	return &APIKeys{repo: repo, pepper: pepper}
}

// Authenticate resolves key to its stored identity.
func (a *APIKeys) Authenticate(ctx context.Context, key string) (*APIKeyInfo, error) {
	if key == "" {
		return nil, ErrUnauthorized
	}
	mac := hmac.New(sha256.New, a.pepper)
	mac.Write([]byte(key))
	hash := mac.Sum(nil)

	info, err := a.repo.FindByHash(ctx, hex.EncodeToString(hash))
	if err != nil {
		return nil, ErrUnauthorized
	}

	// The stored row must match what we computed, compared in constant time.
	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
		return nil, ErrUnauthorized
	}
	return info, nil
}
