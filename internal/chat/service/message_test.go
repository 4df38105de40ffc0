package service

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/whisper/internal/chat/domain"
	"github.com/aussiebroadwan/whisper/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newMessageService(t *testing.T) (*MessageService, domain.User, domain.User) {
	t.Helper()

	st := newSessionTestStore(t)
	alice := seedNamedUser(t, st, "alice")
	bob := seedNamedUser(t, st, "bob")
	require.NoError(t, st.Friends().CreateFriend(context.Background(), domain.Friend{
		ID:         idx.New().String(),
		SenderID:   alice.ID,
		ReceiverID: bob.ID,
	}))

	return &MessageService{
		Store: st,
		Keys:  &KeyStoreService{Store: st},
	}, alice, bob
}

// storeEncrypted persists a message the way the realtime engine does:
// ciphertext at rest, status sent.
func storeEncrypted(t *testing.T, svc *MessageService, sender, receiver, plaintext string) domain.Message {
	t.Helper()
	ctx := context.Background()

	envelope, err := svc.Keys.Encrypt(ctx, sender, receiver, plaintext)
	require.NoError(t, err)

	m := domain.Message{
		ID:          idx.New().String(),
		SenderID:    sender,
		ReceiverID:  receiver,
		Content:     envelope,
		IsEncrypted: true,
		Status:      domain.StatusSent,
	}
	require.NoError(t, svc.Store.Messages().CreateMessage(ctx, m))
	return m
}

func TestMessageService_History(t *testing.T) {
	ctx := context.Background()

	t.Run("decrypts both directions", func(t *testing.T) {
		svc, alice, bob := newMessageService(t)

		storeEncrypted(t, svc, alice.ID, bob.ID, "hi bob")
		storeEncrypted(t, svc, bob.ID, alice.ID, "hi alice")

		views, err := svc.History(ctx, alice.ID, bob.Slug)
		require.NoError(t, err)
		require.Len(t, views, 2)
		require.Equal(t, "hi bob", views[0].Content)
		require.Equal(t, "hi alice", views[1].Content)
	})

	t.Run("corrupt message gets a placeholder", func(t *testing.T) {
		svc, alice, bob := newMessageService(t)

		storeEncrypted(t, svc, alice.ID, bob.ID, "fine")
		require.NoError(t, svc.Store.Messages().CreateMessage(ctx, domain.Message{
			ID:          idx.New().String(),
			SenderID:    alice.ID,
			ReceiverID:  bob.ID,
			Content:     "not:an:envelope",
			IsEncrypted: true,
			Status:      domain.StatusSent,
		}))

		views, err := svc.History(ctx, alice.ID, bob.Slug)
		require.NoError(t, err)
		require.Len(t, views, 2)
		require.Equal(t, "fine", views[0].Content)
		require.Equal(t, DecryptPlaceholder, views[1].Content)
	})

	t.Run("unknown friend slug", func(t *testing.T) {
		svc, alice, _ := newMessageService(t)

		_, err := svc.History(ctx, alice.ID, "nobody")
		require.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("non-friends are rejected", func(t *testing.T) {
		svc, alice, _ := newMessageService(t)
		carol := seedNamedUser(t, svc.Store, "carol")

		_, err := svc.History(ctx, alice.ID, carol.Slug)
		require.ErrorIs(t, err, ErrNotFriends)

		_, err = svc.ResolveFriend(ctx, carol.ID, alice.Slug)
		require.ErrorIs(t, err, ErrNotFriends)
	})

	t.Run("plaintext rows pass through", func(t *testing.T) {
		svc, alice, bob := newMessageService(t)

		require.NoError(t, svc.Store.Messages().CreateMessage(ctx, domain.Message{
			ID:         idx.New().String(),
			SenderID:   alice.ID,
			ReceiverID: bob.ID,
			Content:    "legacy plaintext",
			Status:     domain.StatusSent,
		}))

		views, err := svc.History(ctx, alice.ID, bob.Slug)
		require.NoError(t, err)
		require.Len(t, views, 1)
		require.Equal(t, "legacy plaintext", views[0].Content)
	})
}

func TestMessageService_HistoryFiltersDeleted(t *testing.T) {
	ctx := context.Background()
	svc, alice, bob := newMessageService(t)

	m := storeEncrypted(t, svc, alice.ID, bob.ID, "soon gone")
	require.NoError(t, svc.Store.Messages().SoftDeleteMessage(ctx, m.ID))

	views, err := svc.History(ctx, alice.ID, bob.Slug)
	require.NoError(t, err)
	require.Empty(t, views)

	// The tombstoned row still exists until housekeeping purges it.
	got, err := svc.Store.Messages().GetMessageByID(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DeletedAt)
}
