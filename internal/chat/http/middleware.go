package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/whisper/internal/chat/service"
	"github.com/aussiebroadwan/whisper/pkg/httpx"
)

// AuthnMiddleware validates the bearer token through the session service
// and stashes the caller's identity in the request context. Revocation is
// checked before the signature, so a blacklisted token never passes.
func AuthnMiddleware(sessions *service.SessionService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := sessions.Authenticate(r.Context(), BearerToken(r))
			if err != nil {
				writeAuthError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), httpx.CtxKeyUserID, claims.Subject)
			ctx = context.WithValue(ctx, httpx.CtxKeyRole, claims.Role)
			ctx = context.WithValue(ctx, httpx.CtxKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the access token from the Authorization header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrMissingCredential):
		httpx.WriteError(w, http.StatusUnauthorized, "missing_credential", "authorization required")
	case errors.Is(err, service.ErrTokenExpired):
		httpx.WriteError(w, http.StatusUnauthorized, "token_expired", "access token expired")
	case errors.Is(err, service.ErrTokenRevoked):
		httpx.WriteError(w, http.StatusUnauthorized, "token_revoked", "access token revoked")
	case errors.Is(err, service.ErrInvalidToken):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "access token invalid")
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "authentication unavailable")
	}
}
