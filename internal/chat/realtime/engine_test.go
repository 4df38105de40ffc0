package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/aussiebroadwan/whisper/internal/chat/domain"
	"github.com/aussiebroadwan/whisper/internal/chat/service"
	"github.com/aussiebroadwan/whisper/internal/chat/store"
	"github.com/aussiebroadwan/whisper/internal/chat/store/drivers/sqlite"
	"github.com/aussiebroadwan/whisper/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, domain.User, domain.User) {
	t.Helper()

	st, err := sqlite.NewStore("file:engine_test_" + idx.New().String() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	alice := seedEngineUser(t, st, "alice")
	bob := seedEngineUser(t, st, "bob")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(st, &service.KeyStoreService{Store: st}, logger)
	return engine, alice, bob
}

func seedEngineUser(t *testing.T, st store.Store, name string) domain.User {
	t.Helper()

	u := domain.User{
		ID:           idx.New().String(),
		Name:         name,
		Slug:         name,
		Email:        name + "@example.com",
		Role:         domain.RoleUser,
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA",
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), u))
	return u
}

func drain(c *Client) []Event {
	var out []Event
	for {
		select {
		case e := <-c.Send:
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestEngine_RouteMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("persists ciphertext and fans out plaintext", func(t *testing.T) {
		engine, alice, bob := newTestEngine(t)

		aliceClient := NewClient(alice.ID, 8)
		bobClient := NewClient(bob.ID, 8)
		require.NoError(t, engine.RegisterConnection(ctx, aliceClient))
		require.NoError(t, engine.RegisterConnection(ctx, bobClient))

		view, err := engine.RouteMessage(ctx, alice.ID, bob.ID, "hello bob")
		require.NoError(t, err)
		require.Equal(t, "hello bob", view.Content)

		stored, err := engine.Store.Messages().GetMessageByID(ctx, view.ID)
		require.NoError(t, err)
		require.True(t, stored.IsEncrypted)
		require.NotEqual(t, "hello bob", stored.Content)
		require.Equal(t, domain.StatusSent, stored.Status)

		for _, c := range []*Client{aliceClient, bobClient} {
			events := drain(c)
			require.Len(t, events, 1)
			require.Equal(t, EventReceive, events[0].Event)

			var p ReceiveMessagePayload
			require.NoError(t, json.Unmarshal(events[0].Data, &p))
			require.Equal(t, view.ID, p.ID)
			require.Equal(t, "hello bob", p.Message)
		}
	})

	t.Run("offline receiver keeps status sent", func(t *testing.T) {
		engine, alice, bob := newTestEngine(t)

		view, err := engine.RouteMessage(ctx, alice.ID, bob.ID, "are you there")
		require.NoError(t, err)

		stored, err := engine.Store.Messages().GetMessageByID(ctx, view.ID)
		require.NoError(t, err)
		require.Equal(t, domain.StatusSent, stored.Status)
	})
}

func TestEngine_ConnectSweep(t *testing.T) {
	ctx := context.Background()

	t.Run("pending messages promote to delivered with one grouped event", func(t *testing.T) {
		engine, alice, bob := newTestEngine(t)

		// Alice is online and sends twice while Bob is offline.
		aliceClient := NewClient(alice.ID, 8)
		require.NoError(t, engine.RegisterConnection(ctx, aliceClient))

		first, err := engine.RouteMessage(ctx, alice.ID, bob.ID, "one")
		require.NoError(t, err)
		second, err := engine.RouteMessage(ctx, alice.ID, bob.ID, "two")
		require.NoError(t, err)
		drain(aliceClient)

		// Bob connects; both messages promote and Alice gets exactly one
		// grouped status event.
		bobClient := NewClient(bob.ID, 8)
		require.NoError(t, engine.RegisterConnection(ctx, bobClient))

		events := drain(aliceClient)
		require.Len(t, events, 1)
		require.Equal(t, EventStatusUpdated, events[0].Event)

		var p StatusUpdatedPayload
		require.NoError(t, json.Unmarshal(events[0].Data, &p))
		require.Equal(t, domain.StatusDelivered, p.Status)
		require.ElementsMatch(t, []string{first.ID, second.ID}, p.MessageIDs)

		for _, id := range p.MessageIDs {
			stored, err := engine.Store.Messages().GetMessageByID(ctx, id)
			require.NoError(t, err)
			require.Equal(t, domain.StatusDelivered, stored.Status)
		}
	})

	t.Run("reconnect sweep is idempotent", func(t *testing.T) {
		engine, alice, bob := newTestEngine(t)

		aliceClient := NewClient(alice.ID, 8)
		require.NoError(t, engine.RegisterConnection(ctx, aliceClient))
		_, err := engine.RouteMessage(ctx, alice.ID, bob.ID, "once")
		require.NoError(t, err)
		drain(aliceClient)

		bobClient := NewClient(bob.ID, 8)
		require.NoError(t, engine.RegisterConnection(ctx, bobClient))
		require.Len(t, drain(aliceClient), 1)

		// A second device connecting finds nothing pending.
		bobPhone := NewClient(bob.ID, 8)
		require.NoError(t, engine.RegisterConnection(ctx, bobPhone))
		require.Empty(t, drain(aliceClient))
	})

	t.Run("presence follows first and last connection", func(t *testing.T) {
		engine, _, bob := newTestEngine(t)

		c1 := NewClient(bob.ID, 8)
		c2 := NewClient(bob.ID, 8)
		require.NoError(t, engine.RegisterConnection(ctx, c1))
		require.NoError(t, engine.RegisterConnection(ctx, c2))

		u, err := engine.Store.Users().GetUserByID(ctx, bob.ID)
		require.NoError(t, err)
		require.True(t, u.IsOnline)

		engine.UnregisterConnection(ctx, c1)
		u, err = engine.Store.Users().GetUserByID(ctx, bob.ID)
		require.NoError(t, err)
		require.True(t, u.IsOnline)

		engine.UnregisterConnection(ctx, c2)
		u, err = engine.Store.Users().GetUserByID(ctx, bob.ID)
		require.NoError(t, err)
		require.False(t, u.IsOnline)
		require.NotNil(t, u.LastSeen)
	})
}

func TestEngine_MarkRead(t *testing.T) {
	ctx := context.Background()

	t.Run("grouped per sender notification", func(t *testing.T) {
		engine, alice, bob := newTestEngine(t)
		carol := seedEngineUser(t, engine.Store, "carol")

		aliceClient := NewClient(alice.ID, 8)
		carolClient := NewClient(carol.ID, 8)
		require.NoError(t, engine.RegisterConnection(ctx, aliceClient))
		require.NoError(t, engine.RegisterConnection(ctx, carolClient))

		m1, err := engine.RouteMessage(ctx, alice.ID, bob.ID, "from alice 1")
		require.NoError(t, err)
		m2, err := engine.RouteMessage(ctx, alice.ID, bob.ID, "from alice 2")
		require.NoError(t, err)
		m3, err := engine.RouteMessage(ctx, carol.ID, bob.ID, "from carol")
		require.NoError(t, err)
		drain(aliceClient)
		drain(carolClient)

		require.NoError(t, engine.MarkRead(ctx, bob.ID, []string{m1.ID, m2.ID, m3.ID}))

		aliceEvents := drain(aliceClient)
		require.Len(t, aliceEvents, 1)
		var p StatusUpdatedPayload
		require.NoError(t, json.Unmarshal(aliceEvents[0].Data, &p))
		require.Equal(t, domain.StatusRead, p.Status)
		require.ElementsMatch(t, []string{m1.ID, m2.ID}, p.MessageIDs)

		carolEvents := drain(carolClient)
		require.Len(t, carolEvents, 1)
		require.NoError(t, json.Unmarshal(carolEvents[0].Data, &p))
		require.ElementsMatch(t, []string{m3.ID}, p.MessageIDs)
	})

	t.Run("only the receiver can mark read", func(t *testing.T) {
		engine, alice, bob := newTestEngine(t)

		m, err := engine.RouteMessage(ctx, alice.ID, bob.ID, "private")
		require.NoError(t, err)

		// Alice is the sender, not the receiver; nothing transitions.
		require.NoError(t, engine.MarkRead(ctx, alice.ID, []string{m.ID}))
		stored, err := engine.Store.Messages().GetMessageByID(ctx, m.ID)
		require.NoError(t, err)
		require.Equal(t, domain.StatusSent, stored.Status)
	})

	t.Run("re-marking read does not re-notify", func(t *testing.T) {
		engine, alice, bob := newTestEngine(t)

		aliceClient := NewClient(alice.ID, 8)
		require.NoError(t, engine.RegisterConnection(ctx, aliceClient))

		m, err := engine.RouteMessage(ctx, alice.ID, bob.ID, "once only")
		require.NoError(t, err)
		drain(aliceClient)

		require.NoError(t, engine.MarkRead(ctx, bob.ID, []string{m.ID}))
		require.Len(t, drain(aliceClient), 1)

		require.NoError(t, engine.MarkRead(ctx, bob.ID, []string{m.ID}))
		require.Empty(t, drain(aliceClient))
	})

	t.Run("empty id list is a no-op", func(t *testing.T) {
		engine, _, bob := newTestEngine(t)

		require.NoError(t, engine.MarkRead(ctx, bob.ID, nil))
	})
}
