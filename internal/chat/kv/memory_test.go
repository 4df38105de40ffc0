package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		s := NewMemory()
		require.NoError(t, s.Set(ctx, "k", "v", 0))

		val, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, "v", val)
	})

	t.Run("missing key", func(t *testing.T) {
		s := NewMemory()

		_, err := s.Get(ctx, "absent")
		require.ErrorIs(t, err, ErrNotFound)

		ok, err := s.Exists(ctx, "absent")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("ttl expiry", func(t *testing.T) {
		now := time.Now()
		s := NewMemoryWithClock(func() time.Time { return now })
		require.NoError(t, s.Set(ctx, "k", "v", time.Minute))

		ok, err := s.Exists(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)

		now = now.Add(time.Minute)
		_, err = s.Get(ctx, "k")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		now := time.Now()
		s := NewMemoryWithClock(func() time.Time { return now })
		require.NoError(t, s.Set(ctx, "k", "v", 0))

		now = now.Add(24 * 365 * time.Hour)
		val, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, "v", val)
	})

	t.Run("del removes and tolerates missing", func(t *testing.T) {
		s := NewMemory()
		require.NoError(t, s.Set(ctx, "a", "1", 0))
		require.NoError(t, s.Set(ctx, "b", "2", 0))

		require.NoError(t, s.Del(ctx, "a", "b", "never-existed"))

		_, err := s.Get(ctx, "a")
		require.ErrorIs(t, err, ErrNotFound)
		_, err = s.Get(ctx, "b")
		require.ErrorIs(t, err, ErrNotFound)
	})
}
