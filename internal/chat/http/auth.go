package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aussiebroadwan/whisper/internal/chat/domain"
	"github.com/aussiebroadwan/whisper/internal/chat/service"
	"github.com/aussiebroadwan/whisper/pkg/httpx"
	"github.com/aussiebroadwan/whisper/pkg/slogx"
)

type AuthHandler struct {
	Users    *service.UserService
	Sessions *service.SessionService
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Slug     string     `json:"slug"`
	Email    string     `json:"email"`
	Role     string     `json:"role"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:       u.ID,
		Name:     u.Name,
		Slug:     u.Slug,
		Email:    u.Email,
		Role:     string(u.Role),
		IsOnline: u.Online(),
		LastSeen: u.LastSeen,
	}
}

// HandleRegister creates a new account.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "validation", "invalid request body")
		return
	}

	u, err := h.Users.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail), errors.Is(err, service.ErrWeakPassword):
			httpx.WriteError(w, http.StatusUnprocessableEntity, "validation", err.Error())
		case errors.Is(err, service.ErrUserExists):
			httpx.WriteError(w, http.StatusConflict, "user_exists", "an account with that email or name already exists")
		default:
			slogx.FromContext(r.Context()).Error("registration failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "registration failed")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toUserResponse(u))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin verifies credentials and sends a one-time login code.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "validation", "invalid request body")
		return
	}

	if err := h.Users.Login(r.Context(), req.Email, req.Password); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect")
		default:
			slogx.FromContext(r.Context()).Error("login failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "login failed")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "verification code sent",
	})
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// HandleVerifyOTP redeems the login code for a token pair.
func (h *AuthHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "validation", "invalid request body")
		return
	}

	pair, err := h.Users.VerifyOTP(r.Context(), req.Email, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidOTP):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_otp", "verification code is invalid")
		case errors.Is(err, service.ErrOTPExpired):
			httpx.WriteError(w, http.StatusUnauthorized, "otp_expired", "verification code has expired")
		default:
			slogx.FromContext(r.Context()).Error("otp verification failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "verification failed")
		}
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// HandleRefresh rotates a refresh token into a fresh pair.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "validation", "invalid request body")
		return
	}

	pair, err := h.Sessions.RefreshTokens(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingCredential):
			httpx.WriteError(w, http.StatusUnauthorized, "missing_credential", "refresh token required")
		case errors.Is(err, service.ErrTokenExpired):
			httpx.WriteError(w, http.StatusUnauthorized, "token_expired", "refresh token expired")
		case errors.Is(err, service.ErrNotRegistered):
			httpx.WriteError(w, http.StatusUnauthorized, "token_not_registered", "refresh token is no longer valid")
		case errors.Is(err, service.ErrMismatch):
			httpx.WriteError(w, http.StatusForbidden, "token_mismatch", "refresh token does not belong to its subject")
		case errors.Is(err, service.ErrInvalidToken):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "refresh token invalid")
		default:
			slogx.FromContext(r.Context()).Error("token refresh failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "refresh failed")
		}
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, pair)
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// HandleLogout revokes the session. Requires authentication.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := ctx.Value(httpx.CtxKeyUserID).(string)
	if !ok || userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "access token invalid")
		return
	}

	var req logoutRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // refresh token is optional
	}

	if err := h.Users.Logout(ctx, userID, BearerToken(r), req.RefreshToken); err != nil {
		slogx.FromContext(ctx).Error("logout failed", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "logout failed")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "logged out",
	})
}

// HandleMe returns the authenticated user's profile.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := ctx.Value(httpx.CtxKeyUserID).(string)
	if !ok || userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "access token invalid")
		return
	}

	u, err := h.Users.Me(ctx, userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		slogx.FromContext(ctx).Error("profile fetch failed", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "profile fetch failed")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}
