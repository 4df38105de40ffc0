package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/whisper/internal/chat/domain"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, name, slug, email, role, password_hash, is_ai,
	is_online, last_seen, otp_code, otp_expires_at, created_at, updated_at`

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, slug, email, role, password_hash, is_ai)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Slug, u.Email, u.Role, u.PasswordHash, u.IsAI,
	)
	return mapConstraint(err)
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *usersRepo) GetUserBySlug(ctx context.Context, slug string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE slug = ?`, slug)
	return scanUser(row)
}

func (r *usersRepo) SetOTP(ctx context.Context, userID, code string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET otp_code = ?, otp_expires_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		code, expiresAt.UTC(), userID,
	)
	return err
}

func (r *usersRepo) ClearOTP(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET otp_code = NULL, otp_expires_at = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		userID,
	)
	return err
}

func (r *usersRepo) SetOnline(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET is_online = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		userID,
	)
	return err
}

func (r *usersRepo) SetOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET is_online = 0, last_seen = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		lastSeen.UTC(), userID,
	)
	return err
}

func (r *usersRepo) PurgeExpiredOTPs(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET otp_code = NULL, otp_expires_at = NULL
		WHERE otp_expires_at IS NOT NULL AND otp_expires_at < ?`,
		now.UTC(),
	)
	return err
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (domain.User, error) {
	var (
		u            domain.User
		lastSeen     sql.NullTime
		otpCode      sql.NullString
		otpExpiresAt sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Name, &u.Slug, &u.Email, &u.Role, &u.PasswordHash, &u.IsAI,
		&u.IsOnline, &lastSeen, &otpCode, &otpExpiresAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.LastSeen = mapNullTimePtr(lastSeen)
	u.OTPCode = mapNullStringPtr(otpCode)
	u.OTPExpiresAt = mapNullTimePtr(otpExpiresAt)
	return u, nil
}
