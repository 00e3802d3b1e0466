/*
Package auth authenticates callers in front of the loyalty core.

PURPOSE:
  The core only ever receives the acting user's email. This package turns
  a bearer token into that email (and a role), and issues tokens at login.

TOKENS:
  HS256, signed with the configured secret. Claims carry the email as the
  subject plus the role; every token gets a random jti.

SEE ALSO:
  - middleware.go: Bearer parsing and role checks for chi routes
  - api/handlers.go: login and register endpoints
*/
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/milhas/loyalty-engine/loyalty"
)

// ErrInvalidToken is returned for malformed, expired or forged tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the JWT claims issued by TokenManager.
type Claims struct {
	Role loyalty.Role `json:"role"`
	jwt.RegisteredClaims
}

// Email is the subject of the token.
func (c Claims) Email() string { return c.Subject }

// TokenManager issues and verifies access tokens.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL is how long issued tokens stay valid.
func (m *TokenManager) TTL() time.Duration { return m.ttl }

// Issue creates a signed token for email with the given role.
func (m *TokenManager) Issue(email string, role loyalty.Role) (string, error) {
	now := m.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, nil
}

// Verify parses raw and returns its claims.
func (m *TokenManager) Verify(raw string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}
