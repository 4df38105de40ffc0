package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/aussiebroadwan/whisper/internal/chat/domain"
)

type messagesRepo struct {
	db dbtx
}

const messageColumns = `id, sender_id, receiver_id, content, is_encrypted,
	status, deleted_at, created_at, updated_at`

func (r *messagesRepo) CreateMessage(ctx context.Context, m domain.Message) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, content, is_encrypted, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.SenderID, m.ReceiverID, m.Content, m.IsEncrypted, m.Status,
	)
	return mapConstraint(err)
}

func (r *messagesRepo) GetMessageByID(ctx context.Context, id string) (domain.Message, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	return scanMessage(row)
}

func (r *messagesRepo) ListConversation(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE deleted_at IS NULL
		  AND ((sender_id = ? AND receiver_id = ?)
		    OR (sender_id = ? AND receiver_id = ?))
		ORDER BY created_at ASC, id ASC`,
		userA, userB, userB, userA,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

// MarkDelivered sweeps the receiver's pending inbox. RETURNING makes the
// result the exact set of rows this statement transitioned, so callers can
// notify senders without racing a concurrent sweep.
func (r *messagesRepo) MarkDelivered(ctx context.Context, receiverID string) ([]domain.MessageRef, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE messages
		SET status = 'delivered', updated_at = CURRENT_TIMESTAMP
		WHERE receiver_id = ? AND status = 'sent' AND deleted_at IS NULL
		RETURNING id, sender_id`,
		receiverID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRefs(rows)
}

func (r *messagesRepo) MarkRead(ctx context.Context, receiverID string, ids []string) ([]domain.MessageRef, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := append([]any{receiverID}, toArgs(ids)...)
	rows, err := r.db.QueryContext(ctx, `
		UPDATE messages
		SET status = 'read', updated_at = CURRENT_TIMESTAMP
		WHERE receiver_id = ? AND status != 'read' AND deleted_at IS NULL
		  AND id IN (`+placeholders(len(ids))+`)
		RETURNING id, sender_id`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRefs(rows)
}

func (r *messagesRepo) SoftDeleteMessage(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET deleted_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	return err
}

func (r *messagesRepo) PurgeDeletedMessages(ctx context.Context, before time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM messages
		WHERE deleted_at IS NOT NULL AND deleted_at < ?`,
		before.UTC(),
	)
	return err
}

func scanMessage(row scanner) (domain.Message, error) {
	var (
		m         domain.Message
		deletedAt sql.NullTime
	)
	err := row.Scan(
		&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.IsEncrypted,
		&m.Status, &deletedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Message{}, mapNotFound(err)
	}
	m.DeletedAt = mapNullTimePtr(deletedAt)
	return m, nil
}

func collectMessages(rows *sql.Rows) ([]domain.Message, error) {
	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func collectRefs(rows *sql.Rows) ([]domain.MessageRef, error) {
	var out []domain.MessageRef
	for rows.Next() {
		var ref domain.MessageRef
		if err := rows.Scan(&ref.ID, &ref.SenderID); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func toArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
