package realtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/whisper/internal/chat/domain"
	"github.com/aussiebroadwan/whisper/internal/chat/service"
	"github.com/aussiebroadwan/whisper/internal/chat/store"
	"github.com/aussiebroadwan/whisper/pkg/idx"
)

// Engine drives presence and message delivery. It owns the registry of
// connected clients and advances the sent -> delivered -> read state
// machine; the conditional UPDATEs in the store make every transition
// idempotent under concurrent sweeps.
type Engine struct {
	Store    store.Store
	Keys     *service.KeyStoreService
	Registry *Registry
	Logger   *slog.Logger
}

func NewEngine(st store.Store, keys *service.KeyStoreService, logger *slog.Logger) *Engine {
	return &Engine{
		Store:    st,
		Keys:     keys,
		Registry: NewRegistry(),
		Logger:   logger,
	}
}

// RegisterConnection adds the client to the user's active set, marks the
// user online and promotes every pending inbound message to delivered.
// Each sender gets ONE grouped status event covering all of their
// promoted messages.
func (e *Engine) RegisterConnection(ctx context.Context, client *Client) error {
	first := e.Registry.Add(client)
	metricConnections.Set(float64(e.Registry.Connections()))

	if first {
		if err := e.Store.Users().SetOnline(ctx, client.UserID); err != nil {
			e.Logger.Error("failed to mark user online",
				slog.String("user_id", client.UserID),
				slog.Any("error", err),
			)
		}
	}

	// RETURNING hands back exactly the rows this sweep transitioned, so a
	// concurrent sweep for the same user can never double-notify a sender.
	pending, err := e.Store.Messages().MarkDelivered(ctx, client.UserID)
	if err != nil {
		return err
	}

	e.notifySenders(pending, domain.StatusDelivered)

	e.Logger.Info("connection registered",
		slog.String("user_id", client.UserID),
		slog.String("session_id", client.SessionID),
		slog.Int("delivered", len(pending)),
	)
	return nil
}

// UnregisterConnection removes the client. When the last device
// disconnects the user goes offline and lastSeen is stamped.
func (e *Engine) UnregisterConnection(ctx context.Context, client *Client) {
	last := e.Registry.Remove(client)
	metricConnections.Set(float64(e.Registry.Connections()))

	if last {
		if err := e.Store.Users().SetOffline(ctx, client.UserID, time.Now()); err != nil {
			e.Logger.Error("failed to mark user offline",
				slog.String("user_id", client.UserID),
				slog.Any("error", err),
			)
		}
	}

	e.Logger.Info("connection unregistered",
		slog.String("user_id", client.UserID),
		slog.String("session_id", client.SessionID),
	)
}

// MarkRead advances the given messages to read for this receiver. Only
// rows actually owned by the receiver and not yet read transition, and
// only their senders are notified.
func (e *Engine) MarkRead(ctx context.Context, userID string, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	eligible, err := e.Store.Messages().MarkRead(ctx, userID, messageIDs)
	if err != nil {
		return err
	}

	e.notifySenders(eligible, domain.StatusRead)
	return nil
}

// RouteMessage encrypts, persists and fans out a message. The stored copy
// is ciphertext; connected participants receive the plaintext along with
// the persisted id. An offline receiver's copy stays sent until their next
// connection sweep promotes it.
func (e *Engine) RouteMessage(ctx context.Context, senderID, receiverID, plaintext string) (service.MessageView, error) {
	envelope, err := e.Keys.Encrypt(ctx, senderID, receiverID, plaintext)
	if err != nil {
		return service.MessageView{}, err
	}

	msg := domain.Message{
		ID:          idx.New().String(),
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Content:     envelope,
		IsEncrypted: true,
		Status:      domain.StatusSent,
	}
	if err := e.Store.Messages().CreateMessage(ctx, msg); err != nil {
		return service.MessageView{}, err
	}
	metricMessagesRouted.Inc()

	view := service.MessageView{
		ID:         msg.ID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    plaintext,
		Status:     domain.StatusSent,
		CreatedAt:  time.Now(),
	}

	// Symmetric fanout: every device of both participants sees the
	// message, which keeps multi-device conversations in sync.
	event := NewEvent(EventReceive, ReceiveMessagePayload{
		ID:         view.ID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Message:    plaintext,
		CreatedAt:  view.CreatedAt,
	})
	e.Registry.SendToUser(receiverID, event)
	e.Registry.SendToUser(senderID, event)

	return view, nil
}

// notifySenders groups refs per sender and pushes one status event to
// each sender's devices.
func (e *Engine) notifySenders(refs []domain.MessageRef, status domain.MessageStatus) {
	for senderID, ids := range domain.GroupBySender(refs) {
		sent := e.Registry.SendToUser(senderID, NewEvent(EventStatusUpdated, StatusUpdatedPayload{
			MessageIDs: ids,
			Status:     status,
		}))
		if sent == 0 && e.Registry.IsOnline(senderID) {
			metricEventsDropped.Inc()
		}
	}
}
