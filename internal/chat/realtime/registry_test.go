package realtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Run("first and last connection transitions", func(t *testing.T) {
		r := NewRegistry()

		c1 := NewClient("alice", 8)
		c2 := NewClient("alice", 8)

		require.True(t, r.Add(c1))
		require.False(t, r.Add(c2))
		require.True(t, r.IsOnline("alice"))
		require.Equal(t, 2, r.Connections())

		require.False(t, r.Remove(c1))
		require.True(t, r.IsOnline("alice"))

		require.True(t, r.Remove(c2))
		require.False(t, r.IsOnline("alice"))
		require.Equal(t, 0, r.Connections())
	})

	t.Run("send fans out to every device", func(t *testing.T) {
		r := NewRegistry()

		c1 := NewClient("alice", 8)
		c2 := NewClient("alice", 8)
		r.Add(c1)
		r.Add(c2)

		delivered := r.SendToUser("alice", NewEvent(EventError, ErrorPayload{Code: "x"}))
		require.Equal(t, 2, delivered)
		require.Len(t, c1.Send, 1)
		require.Len(t, c2.Send, 1)
	})

	t.Run("send to offline user delivers nothing", func(t *testing.T) {
		r := NewRegistry()

		require.Equal(t, 0, r.SendToUser("nobody", NewEvent(EventError, ErrorPayload{})))
	})

	t.Run("full queue drops instead of blocking", func(t *testing.T) {
		r := NewRegistry()

		c := NewClient("alice", 1)
		r.Add(c)

		require.Equal(t, 1, r.SendToUser("alice", NewEvent(EventError, ErrorPayload{})))
		require.Equal(t, 0, r.SendToUser("alice", NewEvent(EventError, ErrorPayload{})))
	})

	t.Run("closed client refuses events", func(t *testing.T) {
		r := NewRegistry()

		c := NewClient("alice", 8)
		r.Add(c)
		c.Close()

		require.Equal(t, 0, r.SendToUser("alice", NewEvent(EventError, ErrorPayload{})))
	})
}
