// Package token issues and verifies the signed session tokens that act
// as the service's bearer credentials. Tokens are integrity-protected,
// not encrypted: claims are readable by the holder, so they must never
// carry secrets.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired is returned when a token's signature verifies but its
// expiry has passed.
var ErrTokenExpired = errors.New("token expired")

// ErrTokenInvalid is returned for any other verification failure:
// malformed token, bad signature, wrong signing method.
var ErrTokenInvalid = errors.New("token invalid")

// DefaultTTL is the session token lifetime used when none is configured.
const DefaultTTL = 7 * 24 * time.Hour

// Claims are the identity claims embedded in a session token.
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HMAC-SHA256 signed session tokens.
// The secret is process-wide configuration loaded once at startup;
// Manager is safe for concurrent use.
type Manager struct {
	secret []byte
	ttl    time.Duration

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewManager constructs a Manager. An empty secret is a configuration
// error: callers must treat it as fatal at boot, not per-request.
func NewManager(secret []byte, ttl time.Duration) (*Manager, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: signing secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Issue mints a signed token carrying the given identity, valid from
// now until now + TTL.
func (m *Manager) Issue(userID, username string) (string, error) {
	now := m.now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token's signature and expiry and returns its claims.
// Expired tokens yield ErrTokenExpired; every other failure yields
// ErrTokenInvalid. Callers must treat both as unauthenticated and never
// trust claims from a failed verification.
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// TTL reports the configured token lifetime, used to align the session
// cookie MaxAge with the token expiry.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}
