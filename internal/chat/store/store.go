package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/whisper/internal/chat/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	Users() Users
	Friends() Friends
	Messages() Messages
	ConversationKeys() ConversationKeys

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, committing on nil and
	// rolling back on error. Use it for multi-step operations that must be
	// atomic (the delivery sweep, duplicate-key races).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	GetUserBySlug(ctx context.Context, slug string) (domain.User, error)

	// SetOTP stores a pending login code and its expiry.
	SetOTP(ctx context.Context, userID, code string, expiresAt time.Time) error

	// ClearOTP consumes the pending code (single-use).
	ClearOTP(ctx context.Context, userID string) error

	// SetOnline marks the user online without touching last_seen.
	SetOnline(ctx context.Context, userID string) error

	// SetOffline marks the user offline and stamps last_seen.
	SetOffline(ctx context.Context, userID string, lastSeen time.Time) error

	// PurgeExpiredOTPs clears codes whose expiry has passed (housekeeping).
	PurgeExpiredOTPs(ctx context.Context, now time.Time) error
}

type Friends interface {
	// CreateFriend inserts an accepted friendship edge.
	CreateFriend(ctx context.Context, f domain.Friend) error

	// AreFriends reports adjacency in either direction.
	AreFriends(ctx context.Context, userA, userB string) (bool, error)

	// ListFriendIDs returns the ids of everyone adjacent to userID.
	ListFriendIDs(ctx context.Context, userID string) ([]string, error)
}

type Messages interface {
	// CreateMessage persists a new message with status 'sent'.
	CreateMessage(ctx context.Context, m domain.Message) error

	GetMessageByID(ctx context.Context, id string) (domain.Message, error)

	// ListConversation returns the full (non-deleted) history between two
	// users, oldest first.
	ListConversation(ctx context.Context, userA, userB string) ([]domain.Message, error)

	// MarkDelivered advances every 'sent' message addressed to the receiver
	// to 'delivered' and returns refs for exactly the rows that
	// transitioned. A concurrent sweep of the same inbox gets a disjoint
	// (usually empty) result, so each transition is notified once.
	MarkDelivered(ctx context.Context, receiverID string) ([]domain.MessageRef, error)

	// MarkRead advances the given messages to 'read' where the receiver
	// matches and the row is not already read, returning refs for the rows
	// that transitioned.
	MarkRead(ctx context.Context, receiverID string, ids []string) ([]domain.MessageRef, error)

	// SoftDeleteMessage stamps deleted_at; history fetches skip the row.
	SoftDeleteMessage(ctx context.Context, id string) error

	// PurgeDeletedMessages permanently removes rows soft-deleted before the
	// cutoff (housekeeping).
	PurgeDeletedMessages(ctx context.Context, before time.Time) error
}

type ConversationKeys interface {
	// CreateConversationKey inserts a key for a canonical pair. The unique
	// constraint on (user_a, user_b) maps duplicate-create races to
	// ErrAlreadyExists so one key always survives.
	CreateConversationKey(ctx context.Context, k domain.ConversationKey) error

	// GetConversationKey looks up the key for a canonical pair.
	GetConversationKey(ctx context.Context, userA, userB string) (domain.ConversationKey, error)

	// SoftDeleteConversationKey stamps deleted_at for a canonical pair.
	SoftDeleteConversationKey(ctx context.Context, userA, userB string) error
}
