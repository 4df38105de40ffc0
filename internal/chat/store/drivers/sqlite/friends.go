package sqlite

import (
	"context"

	"github.com/aussiebroadwan/whisper/internal/chat/domain"
)

type friendsRepo struct {
	db dbtx
}

func (r *friendsRepo) CreateFriend(ctx context.Context, f domain.Friend) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO friends (id, sender_id, receiver_id)
		VALUES (?, ?, ?)`,
		f.ID, f.SenderID, f.ReceiverID,
	)
	return mapConstraint(err)
}

func (r *friendsRepo) AreFriends(ctx context.Context, userA, userB string) (bool, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM friends
		WHERE (sender_id = ? AND receiver_id = ?)
		   OR (sender_id = ? AND receiver_id = ?)`,
		userA, userB, userB, userA,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *friendsRepo) ListFriendIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END
		FROM friends
		WHERE sender_id = ? OR receiver_id = ?`,
		userID, userID, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
