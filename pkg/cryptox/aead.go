package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MessageKeySize is the AES-256 key length used for conversation keys.
const MessageKeySize = 32

const gcmTagSize = 16

var ErrEnvelopeFormat = errors.New("cryptox: malformed envelope")

// GenerateMessageKey returns a fresh random 256-bit conversation key,
// base64-encoded for storage.
func GenerateMessageKey() (string, error) {
	key := make([]byte, MessageKeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate message key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// EncryptMessage encrypts plaintext with AES-256-GCM under the base64-encoded
// key and a random per-message nonce. The envelope is self-describing:
//
//	base64(nonce):base64(tag):base64(ciphertext)
//
// so decryption needs no state beyond the conversation key itself.
func EncryptMessage(plaintext, key string) (string, error) {
	gcm, err := messageCipher(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends the auth tag to the ciphertext; split them so the
	// envelope carries each part explicitly.
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-gcmTagSize], sealed[len(sealed)-gcmTagSize:]

	return strings.Join([]string{
		base64.StdEncoding.EncodeToString(nonce),
		base64.StdEncoding.EncodeToString(tag),
		base64.StdEncoding.EncodeToString(ct),
	}, ":"), nil
}

// DecryptMessage reverses EncryptMessage, verifying the authentication tag
// before returning plaintext. Any tampering or key mismatch returns an error
// wrapping ErrEnvelopeFormat or a GCM open failure; callers reading history
// are expected to degrade per-message rather than propagate.
func DecryptMessage(envelope, key string) (string, error) {
	parts := strings.Split(envelope, ":")
	if len(parts) != 3 {
		return "", ErrEnvelopeFormat
	}

	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: bad nonce: %w", ErrEnvelopeFormat, err)
	}
	tag, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: bad tag: %w", ErrEnvelopeFormat, err)
	}
	ct, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext: %w", ErrEnvelopeFormat, err)
	}

	gcm, err := messageCipher(key)
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() || len(tag) != gcmTagSize {
		return "", ErrEnvelopeFormat
	}

	plaintext, err := gcm.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("decryption failed: %w", err)
	}

	return string(plaintext), nil
}

func messageCipher(key string) (cipher.AEAD, error) {
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("invalid message key encoding: %w", err)
	}
	if len(raw) != MessageKeySize {
		return nil, fmt.Errorf("invalid message key length: got %d, want %d", len(raw), MessageKeySize)
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
