package realtime

import (
	"encoding/json"
	"time"

	"github.com/aussiebroadwan/whisper/internal/chat/domain"
)

// Wire event names. Client-to-server: authenticate, sendMessage, markRead.
// Server-to-client: receiveMessage, messageStatusUpdated, error.
const (
	EventAuthenticate  = "authenticate"
	EventSendMessage   = "sendMessage"
	EventMarkRead      = "markRead"
	EventReceive       = "receiveMessage"
	EventStatusUpdated = "messageStatusUpdated"
	EventError         = "error"
)

// Event is the websocket envelope. Data is kept raw so the gateway can
// decode per event type.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals payload into an envelope. Payloads are plain structs,
// so a marshal failure means a programming error; it degrades to an empty
// data field rather than panicking.
func NewEvent(event string, payload any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{Event: event}
	}
	return Event{Event: event, Data: data}
}

type AuthenticatePayload struct {
	Token string `json:"token"`
}

type SendMessagePayload struct {
	ReceiverID string `json:"receiverId"`
	Message    string `json:"message"`
}

type MarkReadPayload struct {
	MessageIDs []string `json:"messageIds"`
}

// ReceiveMessagePayload carries the plaintext to connected participants;
// only the persisted copy is ciphertext.
type ReceiveMessagePayload struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"createdAt"`
}

// StatusUpdatedPayload groups every affected message id into one event per
// sender per transition.
type StatusUpdatedPayload struct {
	MessageIDs []string             `json:"messageIds"`
	Status     domain.MessageStatus `json:"status"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
