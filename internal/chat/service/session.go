package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/whisper/internal/chat/domain"
	"github.com/aussiebroadwan/whisper/internal/chat/kv"
	"github.com/aussiebroadwan/whisper/internal/chat/store"
	"github.com/aussiebroadwan/whisper/pkg/jwtx"
	"github.com/aussiebroadwan/whisper/pkg/slogx"
)

var (
	ErrMissingCredential = errors.New("missing_credential")
	ErrInvalidToken      = errors.New("invalid_token")
	ErrTokenExpired      = errors.New("token_expired")
	ErrTokenRevoked      = errors.New("token_revoked")
	ErrNotRegistered     = errors.New("token_not_registered")
	ErrMismatch          = errors.New("token_mismatch")
)

const (
	refreshTokenKeyPrefix = "refresh_token:"
	blacklistKeyPrefix    = "blacklist:"
	refreshUserKeyPrefix  = "refresh_user:"

	// blacklistFallbackTTL bounds blacklist entries when the access token's
	// expiry cannot be recovered from its claims.
	blacklistFallbackTTL = 24 * time.Hour
)

// SessionService owns the token lifecycle: issuing access/refresh pairs,
// single-use refresh rotation, revocation via blacklist, and request
// authentication. Refresh registration and the blacklist live in the kv
// store so entries expire on their own.
type SessionService struct {
	Access  *jwtx.HS256
	Refresh *jwtx.HS256
	KV      kv.Store
	Store   store.Store

	// SingleSession evicts a user's previous refresh token whenever a new
	// pair is issued, limiting each account to one live session.
	SingleSession bool
}

// IssueTokens signs a fresh access/refresh pair for the user and registers
// the refresh token in the kv store. An unregistered refresh token can
// never be redeemed, so losing the kv entry is equivalent to revocation.
func (s *SessionService) IssueTokens(ctx context.Context, u domain.User) (*domain.TokenPair, error) {
	access, err := s.Access.Sign(u.ID, string(u.Role), u.Name, u.Email)
	if err != nil {
		return nil, err
	}

	refresh, err := s.Refresh.Sign(u.ID, string(u.Role), u.Name, u.Email)
	if err != nil {
		return nil, err
	}

	if err := s.registerRefresh(ctx, refresh, u.ID); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    s.Access.TTL(),
	}, nil
}

// RefreshTokens redeems a refresh token for a new pair. Redemption is
// single-use: the old token's registration is deleted before the
// replacement is stored, so a replayed token fails the registry lookup.
func (s *SessionService) RefreshTokens(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	if refreshToken == "" {
		return nil, ErrMissingCredential
	}

	claims, err := s.Refresh.Verify(refreshToken)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			// The registration entry outlives nothing; clean it up anyway in
			// case kv TTL and token expiry drifted.
			_ = s.KV.Del(ctx, refreshTokenKeyPrefix+refreshToken)
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	userID, err := s.KV.Get(ctx, refreshTokenKeyPrefix+refreshToken)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			l.Info("refresh token not registered", slog.String("user_id", claims.Subject))
			return nil, ErrNotRegistered
		}
		return nil, err
	}

	if userID != claims.Subject {
		l.Warn("refresh token subject mismatch",
			slog.String("claim_subject", claims.Subject),
			slog.String("registered_user", userID),
		)
		return nil, ErrMismatch
	}

	// Load the user so the new tokens carry current profile fields.
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if err := s.KV.Del(ctx, refreshTokenKeyPrefix+refreshToken); err != nil {
		return nil, err
	}

	return s.IssueTokens(ctx, u)
}

// Revoke invalidates both halves of a session: the refresh token's
// registration is removed and the access token is blacklisted for its
// remaining lifetime. Expired or garbage tokens are ignored rather than
// erroring, so logout is always safe to call.
func (s *SessionService) Revoke(ctx context.Context, accessToken, refreshToken string) error {
	if refreshToken != "" {
		if err := s.KV.Del(ctx, refreshTokenKeyPrefix+refreshToken); err != nil {
			return err
		}
	}

	if accessToken == "" {
		return nil
	}

	ttl := blacklistFallbackTTL
	if claims, err := jwtx.DecodeUnverified(accessToken); err == nil {
		remaining, ok := claims.RemainingLifetime(time.Now())
		if !ok {
			return nil // already expired, nothing to blacklist
		}
		ttl = remaining
	}

	return s.KV.Set(ctx, blacklistKeyPrefix+accessToken, "1", ttl)
}

// Authenticate validates an access token for a request. The blacklist is
// consulted before signature verification so revoked tokens are rejected
// even if the signing secret later changes.
func (s *SessionService) Authenticate(ctx context.Context, accessToken string) (jwtx.Claims, error) {
	if accessToken == "" {
		return jwtx.Claims{}, ErrMissingCredential
	}

	revoked, err := s.KV.Exists(ctx, blacklistKeyPrefix+accessToken)
	if err != nil {
		return jwtx.Claims{}, err
	}
	if revoked {
		return jwtx.Claims{}, ErrTokenRevoked
	}

	claims, err := s.Access.Verify(accessToken)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return jwtx.Claims{}, ErrTokenExpired
		}
		return jwtx.Claims{}, ErrInvalidToken
	}

	return claims, nil
}

// registerRefresh stores the refresh token registration, evicting the
// user's previous session first when single-session mode is on.
func (s *SessionService) registerRefresh(ctx context.Context, refreshToken, userID string) error {
	if s.SingleSession {
		if prev, err := s.KV.Get(ctx, refreshUserKeyPrefix+userID); err == nil && prev != "" {
			if err := s.KV.Del(ctx, refreshTokenKeyPrefix+prev); err != nil {
				return err
			}
		} else if err != nil && !errors.Is(err, kv.ErrNotFound) {
			return err
		}

		if err := s.KV.Set(ctx, refreshUserKeyPrefix+userID, refreshToken, s.Refresh.TTL()); err != nil {
			return err
		}
	}

	return s.KV.Set(ctx, refreshTokenKeyPrefix+refreshToken, userID, s.Refresh.TTL())
}
