package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
)

// HS256 signs and verifies tokens with a single shared secret. Access and
// refresh tokens each get their own instance with an independent secret and
// TTL, so a leaked access secret never mints refresh tokens.
type HS256 struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewHS256 constructs a signer/verifier pair over one secret.
func NewHS256(secret, issuer string, ttl time.Duration) *HS256 {
	return &HS256{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// TTL returns the configured token lifetime.
func (h *HS256) TTL() time.Duration { return h.ttl }

// Sign issues a token for the given identity, stamping exp from the
// configured TTL.
func (h *HS256) Sign(subject, role, name, email string) (string, error) {
	claims := NewClaims(subject, role, name, email, h.ttl, h.issuer, time.Now().UTC())
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(h.secret)
}

// Verify parses and validates a token, returning its claims.
// Expiry surfaces as ErrExpired so callers can distinguish "attempt a
// refresh" from "force re-login" (ErrInvalidSig / ErrMalformed).
func (h *HS256) Verify(raw string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSig
		}
		return h.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return claims, ErrExpired
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return Claims{}, ErrNotYetValid
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, ErrInvalidSig
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Claims{}, ErrMalformed
		default:
			return Claims{}, ErrMalformed
		}
	}

	if h.issuer != "" && claims.Issuer != h.issuer {
		return Claims{}, ErrIssuer
	}

	return claims, nil
}

// DecodeUnverified extracts claims without checking the signature. Revocation
// needs this: a token being blacklisted must have its remaining lifetime
// recovered even when the caller can no longer prove it verifies.
func DecodeUnverified(raw string) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, &claims); err != nil {
		return Claims{}, ErrMalformed
	}
	return claims, nil
}
