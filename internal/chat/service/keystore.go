package service

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/whisper/internal/chat/domain"
	"github.com/aussiebroadwan/whisper/internal/chat/store"
	"github.com/aussiebroadwan/whisper/pkg/cryptox"
	"github.com/aussiebroadwan/whisper/pkg/idx"
)

// KeyStoreService manages the symmetric conversation keys. Every pair of
// users shares exactly one key, looked up by canonical pair so argument
// order never matters. Keys are created lazily on first use and never
// rotated; rotating would orphan the existing ciphertext.
type KeyStoreService struct {
	Store store.Store
}

// GetOrCreateKey returns the conversation key for the pair, minting one if
// none exists yet. A concurrent create for the same pair loses the insert
// race on the unique constraint and refetches the winner's key.
func (s *KeyStoreService) GetOrCreateKey(ctx context.Context, userA, userB string) (domain.ConversationKey, error) {
	lo, hi := domain.CanonicalPair(userA, userB)

	key, err := s.Store.ConversationKeys().GetConversationKey(ctx, lo, hi)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.ConversationKey{}, err
	}

	secret, err := cryptox.GenerateMessageKey()
	if err != nil {
		return domain.ConversationKey{}, err
	}

	key = domain.ConversationKey{
		ID:     idx.New().String(),
		UserA:  lo,
		UserB:  hi,
		Secret: secret,
	}

	err = s.Store.ConversationKeys().CreateConversationKey(ctx, key)
	if errors.Is(err, store.ErrAlreadyExists) {
		return s.Store.ConversationKeys().GetConversationKey(ctx, lo, hi)
	}
	if err != nil {
		return domain.ConversationKey{}, err
	}

	return key, nil
}

// Encrypt seals plaintext under the pair's conversation key, creating the
// key on first use.
func (s *KeyStoreService) Encrypt(ctx context.Context, userA, userB, plaintext string) (string, error) {
	key, err := s.GetOrCreateKey(ctx, userA, userB)
	if err != nil {
		return "", err
	}
	return cryptox.EncryptMessage(plaintext, key.Secret)
}

// Decrypt opens an envelope sealed under the pair's conversation key.
func (s *KeyStoreService) Decrypt(ctx context.Context, userA, userB, envelope string) (string, error) {
	lo, hi := domain.CanonicalPair(userA, userB)

	key, err := s.Store.ConversationKeys().GetConversationKey(ctx, lo, hi)
	if err != nil {
		return "", err
	}
	return cryptox.DecryptMessage(envelope, key.Secret)
}
