// Package cursor issues and verifies opaque pagination cursors for
// memoryd's list operations. A cursor is a signed JWT carrying the last
// seen offset/ID and scope, so a client can resume a listing without the
// server keeping per-client server-side state.
package cursor

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrExpired is returned when a cursor's TTL has elapsed.
var ErrExpired = errors.New("cursor: expired")

// ErrInvalid is returned for a malformed or tampered cursor.
var ErrInvalid = errors.New("cursor: invalid")

// ErrTooLarge is returned when an issued cursor would exceed MaxBytes.
var ErrTooLarge = errors.New("cursor: exceeds max size")

// Claims is the payload carried inside a cursor, encoding exactly enough
// state to resume a paginated listing: which entry was last seen, and the
// scope/filter the listing was narrowed to (so a cursor can't be replayed
// against a different query).
type Claims struct {
	jwt.RegisteredClaims

	LastID     string `json:"lid"`
	LastScore  float64 `json:"score,omitempty"`
	QueryHash  string `json:"qh"`
}

// Issuer signs and verifies cursors with a shared HMAC secret.
type Issuer struct {
	secret   []byte
	ttl      time.Duration
	maxBytes int
}

// New constructs an Issuer. secret must be non-empty; an empty secret would
// let anyone forge cursors.
func New(secret string, ttl time.Duration, maxBytes int) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("cursor: secret must not be empty")
	}
	if maxBytes <= 0 {
		maxBytes = 10 * 1024
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, maxBytes: maxBytes}, nil
}

// Issue produces a signed, opaque cursor string for lastID within a listing
// identified by queryHash (a stable hash of the listing's scope/filters).
func (i *Issuer) Issue(lastID string, lastScore float64, queryHash string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		LastID:    lastID,
		LastScore: lastScore,
		QueryHash: queryHash,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("cursor: sign: %w", err)
	}
	if len(signed) > i.maxBytes {
		return "", ErrTooLarge
	}
	return signed, nil
}

// Verify parses and validates a cursor, checking its signature, expiry, and
// that it was issued for the same queryHash the caller is now listing
// against (preventing a cursor from one filtered view being replayed
// against another).
func (i *Issuer) Verify(token, queryHash string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("cursor: unexpected signing method %v", t.Method.Alg())
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, ErrInvalid
	}
	if !parsed.Valid {
		return Claims{}, ErrInvalid
	}
	if claims.QueryHash != queryHash {
		return Claims{}, ErrInvalid
	}
	return claims, nil
}
