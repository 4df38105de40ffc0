package domain

import "time"

// TokenPair is what login, OTP verification and refresh return: a
// short-lived access token and the long-lived refresh token that replaces
// it. Both are signed JWTs; only the refresh token is registered
// server-side.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type,omitempty"` // typically "Bearer"
	ExpiresIn    time.Duration `json:"expires_in"`           // access token lifetime
}
