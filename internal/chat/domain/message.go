package domain

import "time"

// MessageStatus is the delivery state of a direct message. It only ever
// moves forward along sent -> delivered -> read; re-applying the current
// status is a no-op, never an error.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// rank orders statuses for monotonicity checks.
func (s MessageStatus) rank() int {
	switch s {
	case StatusSent:
		return 0
	case StatusDelivered:
		return 1
	case StatusRead:
		return 2
	default:
		return -1
	}
}

// Advances reports whether moving to next is a forward transition.
func (s MessageStatus) Advances(next MessageStatus) bool {
	return next.rank() > s.rank()
}

// Valid reports whether s is a known status.
func (s MessageStatus) Valid() bool { return s.rank() >= 0 }

// Message is a persisted direct message. Content holds the AEAD envelope
// when IsEncrypted is set; the plaintext is only ever held transiently on
// the send path.
type Message struct {
	ID          string
	SenderID    string
	ReceiverID  string
	Content     string
	IsEncrypted bool
	Status      MessageStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// MessageRef is the slim projection used by status sweeps: just enough to
// group affected messages by sender for notification.
type MessageRef struct {
	ID       string
	SenderID string
}

// GroupBySender buckets refs by their sender, preserving nothing about
// order. Used to emit one grouped status event per sender.
func GroupBySender(refs []MessageRef) map[string][]string {
	groups := make(map[string][]string)
	for _, ref := range refs {
		groups[ref.SenderID] = append(groups[ref.SenderID], ref.ID)
	}
	return groups
}
