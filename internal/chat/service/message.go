package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/whisper/internal/chat/domain"
	"github.com/aussiebroadwan/whisper/internal/chat/store"
	"github.com/aussiebroadwan/whisper/pkg/slogx"
)

var ErrNotFriends = errors.New("not_friends")

// DecryptPlaceholder is returned in place of message content when the
// stored envelope cannot be opened. One corrupt row never fails a fetch.
const DecryptPlaceholder = "[unable to decrypt]"

// MessageView is a conversation entry with the content already decrypted
// for the requesting participant.
type MessageView struct {
	ID         string               `json:"id"`
	SenderID   string               `json:"senderId"`
	ReceiverID string               `json:"receiverId"`
	Content    string               `json:"content"`
	Status     domain.MessageStatus `json:"status"`
	CreatedAt  time.Time            `json:"createdAt"`
}

// MessageService serves conversation history over REST. Sending goes
// through the realtime engine so REST and websocket share one path.
type MessageService struct {
	Store store.Store
	Keys  *KeyStoreService
}

// ResolveFriend looks up the friend by slug and enforces adjacency. Both
// REST chat operations gate on this before touching messages.
func (s *MessageService) ResolveFriend(ctx context.Context, userID, friendSlug string) (domain.User, error) {
	friend, err := s.Store.Users().GetUserBySlug(ctx, friendSlug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}

	ok, err := s.Store.Friends().AreFriends(ctx, userID, friend.ID)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, ErrNotFriends
	}

	return friend, nil
}

// History returns the conversation with the named friend, oldest first,
// with encrypted content opened using the pair's conversation key.
func (s *MessageService) History(ctx context.Context, userID, friendSlug string) ([]MessageView, error) {
	friend, err := s.ResolveFriend(ctx, userID, friendSlug)
	if err != nil {
		return nil, err
	}

	messages, err := s.Store.Messages().ListConversation(ctx, userID, friend.ID)
	if err != nil {
		return nil, err
	}

	l := slogx.FromContext(ctx)
	views := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		content := m.Content
		if m.IsEncrypted {
			content, err = s.Keys.Decrypt(ctx, m.SenderID, m.ReceiverID, m.Content)
			if err != nil {
				l.Warn("message decryption failed",
					slog.String("message_id", m.ID),
					slog.Any("error", err),
				)
				content = DecryptPlaceholder
			}
		}
		views = append(views, MessageView{
			ID:         m.ID,
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
			Content:    content,
			Status:     m.Status,
			CreatedAt:  m.CreatedAt,
		})
	}

	return views, nil
}
