package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/whisper/internal/chat/domain"
)

type conversationKeysRepo struct {
	db dbtx
}

func (r *conversationKeysRepo) CreateConversationKey(ctx context.Context, k domain.ConversationKey) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversation_keys (id, user_a, user_b, secret)
		VALUES (?, ?, ?, ?)`,
		k.ID, k.UserA, k.UserB, k.Secret,
	)
	return mapConstraint(err)
}

func (r *conversationKeysRepo) GetConversationKey(ctx context.Context, userA, userB string) (domain.ConversationKey, error) {
	var (
		k         domain.ConversationKey
		deletedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_a, user_b, secret, deleted_at, created_at
		FROM conversation_keys
		WHERE user_a = ? AND user_b = ? AND deleted_at IS NULL`,
		userA, userB,
	).Scan(&k.ID, &k.UserA, &k.UserB, &k.Secret, &deletedAt, &k.CreatedAt)
	if err != nil {
		return domain.ConversationKey{}, mapNotFound(err)
	}
	k.DeletedAt = mapNullTimePtr(deletedAt)
	return k, nil
}

func (r *conversationKeysRepo) SoftDeleteConversationKey(ctx context.Context, userA, userB string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversation_keys
		SET deleted_at = CURRENT_TIMESTAMP
		WHERE user_a = ? AND user_b = ? AND deleted_at IS NULL`,
		userA, userB,
	)
	return err
}
