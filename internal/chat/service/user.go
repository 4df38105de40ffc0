package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/aussiebroadwan/whisper/internal/chat/domain"
	"github.com/aussiebroadwan/whisper/internal/chat/store"
	"github.com/aussiebroadwan/whisper/pkg/cryptox"
	"github.com/aussiebroadwan/whisper/pkg/idx"
	"github.com/aussiebroadwan/whisper/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrUserExists         = errors.New("user_exists")
	ErrUserNotFound       = errors.New("user_not_found")
	ErrInvalidOTP         = errors.New("invalid_otp")
	ErrOTPExpired         = errors.New("otp_expired")
	ErrWeakPassword       = errors.New("weak_password")
	ErrInvalidEmail       = errors.New("invalid_email")
)

const (
	// OTPTTL is how long a login code stays redeemable.
	OTPTTL = 10 * time.Minute

	MinPasswordLength = 8
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// UserService covers account registration and the two-step login:
// password check issues a one-time code, code verification issues tokens.
type UserService struct {
	Store    store.Store
	Sessions *SessionService
	Notifier Notifier
}

// Register creates a new account. The slug is derived from the name and
// must be unique alongside the email.
func (s *UserService) Register(ctx context.Context, name, email, password string) (domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if name == "" || !emailPattern.MatchString(email) {
		return domain.User{}, ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return domain.User{}, ErrWeakPassword
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}

	u := domain.User{
		ID:           idx.New().String(),
		Name:         name,
		Slug:         slugify(name),
		Email:        email,
		Role:         domain.RoleUser,
		PasswordHash: hash,
	}

	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrUserExists
		}
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("user registered",
		slog.String("user_id", u.ID),
		slog.String("slug", u.Slug),
	)
	return u, nil
}

// Login is step one of authentication. A valid email/password pair issues
// a short-lived one-time code via the notifier; tokens only come from
// VerifyOTP. Unknown emails and wrong passwords are indistinguishable to
// the caller.
func (s *UserService) Login(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		slogx.FromContext(ctx).Info("login password check failed", slog.String("user_id", u.ID))
		return ErrInvalidCredentials
	}

	code, err := cryptox.GenerateOTP()
	if err != nil {
		return err
	}

	if err := s.Store.Users().SetOTP(ctx, u.ID, code, time.Now().Add(OTPTTL)); err != nil {
		return err
	}

	return s.Notifier.SendLoginCode(ctx, u.Email, code)
}

// VerifyOTP is step two. Redeeming the pending code consumes it, marks
// the user online and returns a fresh token pair.
func (s *UserService) VerifyOTP(ctx context.Context, email, code string) (*domain.TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if u.OTPCode == nil || u.OTPExpiresAt == nil {
		return nil, ErrInvalidOTP
	}
	if time.Now().After(*u.OTPExpiresAt) {
		_ = s.Store.Users().ClearOTP(ctx, u.ID)
		return nil, ErrOTPExpired
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(*u.OTPCode)) != 1 {
		return nil, ErrInvalidOTP
	}

	if err := s.Store.Users().ClearOTP(ctx, u.ID); err != nil {
		return nil, err
	}
	if err := s.Store.Users().SetOnline(ctx, u.ID); err != nil {
		return nil, err
	}

	return s.Sessions.IssueTokens(ctx, u)
}

// Me returns the profile for an authenticated user id.
func (s *UserService) Me(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return u, nil
}

// Logout revokes the session and marks the user offline.
func (s *UserService) Logout(ctx context.Context, userID, accessToken, refreshToken string) error {
	if err := s.Sessions.Revoke(ctx, accessToken, refreshToken); err != nil {
		return err
	}
	return s.Store.Users().SetOffline(ctx, userID, time.Now())
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	slug := strings.ToLower(name)
	slug = slugPattern.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
