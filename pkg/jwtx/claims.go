package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTLs. Short access tokens limit the blast radius of a leak;
// refresh tokens stay long-lived for user convenience.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Claims are the identity claims embedded in both access and refresh tokens.
// The two token kinds use the same shape but independent signing secrets, so
// one can never be replayed as the other.
type Claims struct {
	jwt.RegisteredClaims

	// Role is the account role ("user", "admin", "ai").
	Role string `json:"role,omitempty"`

	// Name is the display name for the user.
	Name string `json:"name,omitempty"`

	// Email is the account email, carried so realtime handlers don't need a
	// user lookup for every event.
	Email string `json:"email,omitempty"`
}

// NewClaims builds minimally-correct identity claims for the given subject.
func NewClaims(subject, role, name, email string, ttl time.Duration, issuer string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:  role,
		Name:  name,
		Email: email,
	}
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't before nbf.
func (c *Claims) ValidateExpiry() error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}

	return nil
}

// RemainingLifetime reports how long until the token's exp claim, measured
// from now. Returns false when the token carries no expiry at all, so callers
// can fall back to a bounded default instead of trusting a zero.
func (c *Claims) RemainingLifetime(now time.Time) (time.Duration, bool) {
	if c.ExpiresAt == nil {
		return 0, false
	}
	remaining := c.ExpiresAt.Time.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}
