package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken is returned when no session token is stored.
var ErrNoToken = errors.New("not logged in")

// Claims are the marketplace fields carried by a session token.
type Claims struct {
	UserID any    `json:"id,omitempty"`
	Role   string `json:"role,omitempty"`
	Name   string `json:"name,omitempty"`
	Phone  string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

// ParseClaims decodes a token without verifying its signature. The CLI
// never holds the signing key; the API verifies every request.
func ParseClaims(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to parse session token: %w", err)
	}
	return claims, nil
}

// User returns the user id as text, falling back to the sub claim.
func (c *Claims) User() string {
	switch v := c.UserID.(type) {
	case nil:
		return c.RegisteredClaims.Subject
	case float64:
		return fmt.Sprintf("%.0f", v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Expired reports whether the token is past its expiry at now. Tokens
// without an exp claim never expire.
func (c *Claims) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !now.Before(c.ExpiresAt.Time)
}
