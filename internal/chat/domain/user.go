package domain

import "time"

// Roles assignable to an account.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
	RoleAI    = "ai"
)

// User is a chat account. AI accounts are bot peers: they never hold a
// websocket connection but are presented as always online.
type User struct {
	ID           string
	Name         string
	Slug         string // URL-safe handle, unique
	Email        string
	Role         string
	PasswordHash string

	IsAI     bool
	IsOnline bool
	LastSeen *time.Time // stamped when the last connection drops

	OTPCode      *string // pending login code, single-use
	OTPExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Online reports effective presence: AI accounts are always online.
func (u User) Online() bool {
	return u.IsAI || u.IsOnline
}
