package domain

import "time"

// ConversationKey is the server-held symmetric key for one unordered pair
// of participants. Created lazily on first message, immutable afterwards.
// UserA is always the lexically smaller id so lookups are commutative.
type ConversationKey struct {
	ID        string
	UserA     string
	UserB     string
	Secret    string // base64-encoded 256-bit AES key
	CreatedAt time.Time
	DeletedAt *time.Time
}

// CanonicalPair orders two participant ids so (a,b) and (b,a) address the
// same conversation.
func CanonicalPair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}
