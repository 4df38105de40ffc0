package jwtx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHS256_SignVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	h := NewHS256("test-secret", "whisper", time.Minute)

	raw, err := h.Sign("01USER", "user", "Alice", "alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	claims, err := h.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, "01USER", claims.Subject)
	require.Equal(t, "user", claims.Role)
	require.Equal(t, "Alice", claims.Name)
	require.Equal(t, "alice@example.com", claims.Email)
	require.Equal(t, "whisper", claims.Issuer)
}

func TestHS256_RejectsCrossSecretTokens(t *testing.T) {
	t.Parallel()

	access := NewHS256("access-secret", "whisper", time.Minute)
	refresh := NewHS256("refresh-secret", "whisper", time.Hour)

	raw, err := access.Sign("01USER", "user", "Alice", "alice@example.com")
	require.NoError(t, err)

	_, err = refresh.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidSig)
}

func TestHS256_Expired(t *testing.T) {
	t.Parallel()

	h := NewHS256("test-secret", "whisper", -time.Minute)

	raw, err := h.Sign("01USER", "user", "Alice", "alice@example.com")
	require.NoError(t, err)

	_, err = h.Verify(raw)
	require.ErrorIs(t, err, ErrExpired)
}

func TestHS256_Malformed(t *testing.T) {
	t.Parallel()

	h := NewHS256("test-secret", "whisper", time.Minute)

	for _, raw := range []string{"", "not-a-jwt", "a.b", "a.b.c"} {
		_, err := h.Verify(raw)
		require.Error(t, err, "input %q", raw)
	}
}

func TestHS256_IssuerMismatch(t *testing.T) {
	t.Parallel()

	minted := NewHS256("test-secret", "someone-else", time.Minute)
	raw, err := minted.Sign("01USER", "user", "Alice", "alice@example.com")
	require.NoError(t, err)

	h := NewHS256("test-secret", "whisper", time.Minute)
	_, err = h.Verify(raw)
	require.ErrorIs(t, err, ErrIssuer)
}

func TestDecodeUnverified(t *testing.T) {
	t.Parallel()

	h := NewHS256("test-secret", "whisper", time.Minute)
	raw, err := h.Sign("01USER", "admin", "Bob", "bob@example.com")
	require.NoError(t, err)

	// Decoding must work even without the secret.
	claims, err := DecodeUnverified(raw)
	require.NoError(t, err)
	require.Equal(t, "01USER", claims.Subject)
	require.Equal(t, "admin", claims.Role)

	remaining, ok := claims.RemainingLifetime(time.Now().UTC())
	require.True(t, ok)
	require.Greater(t, remaining, 30*time.Second)

	_, err = DecodeUnverified("garbage")
	require.ErrorIs(t, err, ErrMalformed)
}

func TestParseTTL(t *testing.T) {
	t.Parallel()

	def := 7 * 24 * time.Hour

	tests := []struct {
		in   string
		want time.Duration
	}{
		{"30s", 30 * time.Second},
		{"15m", 15 * time.Minute},
		{"24h", 24 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
		{"1d", 24 * time.Hour},
		{"", def},
		{"15", def},
		{"m15", def},
		{"15w", def},
		{"fifteen minutes", def},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, ParseTTL(tt.in, def))
		})
	}
}
