package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Client represents one connected websocket session for a user. A user
// with several devices holds several clients.
//
// Send is intentionally NOT closed by the server to avoid panics from
// concurrent broadcasters; done signals goroutines to stop instead.
type Client struct {
	SessionID string
	UserID    string
	Send      chan Event

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a Client with a bounded send queue.
func NewClient(userID string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 64
	}
	return &Client{
		SessionID: uuid.NewString(),
		UserID:    userID,
		Send:      make(chan Event, sendQueueSize),
		done:      make(chan struct{}),
	}
}

// Done returns a channel that is closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	if c == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Close signals the client goroutines to stop (idempotent).
// It does NOT close Send to keep broadcast safe under concurrency.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// TrySend queues an event without blocking. Events are dropped when the
// queue is full or the client is shutting down.
func (c *Client) TrySend(event Event) bool {
	if c == nil {
		return false
	}

	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.Send <- event:
		return true
	default:
		return false
	}
}
