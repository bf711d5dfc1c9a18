package auth

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Tokens verifies customer bearer tokens signed with HS256. The subject
// claim carries the user id.
type Tokens struct {
	secret []byte
}

// NewTokens creates a token verifier for secret.
func NewTokens(secret []byte) *Tokens {
	return &Tokens{secret: secret}
}

// Verify parses token and returns its subject.
func (t *Tokens) Verify(token string) (string, error) {
	if len(t.secret) == 0 || token == "" {
		return "", ErrUnauthorized
	}
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{},
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", errors.Wrap(ErrUnauthorized, err.Error())
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrUnauthorized
	}
	return sub, nil
}

// Sign issues a token for userID valid for ttl. Tokens are normally issued
// by the identity provider; this is used by tooling and tests.
func (t *Tokens) Sign(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

type userKey struct{}

// WithUser stores the authenticated user id in ctx.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFrom returns the authenticated user id, or "".
func UserFrom(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}
