package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/whisper/internal/chat/realtime"
	"github.com/aussiebroadwan/whisper/internal/chat/service"
	"github.com/aussiebroadwan/whisper/pkg/httpx"
	"github.com/aussiebroadwan/whisper/pkg/slogx"
)

type ChatsHandler struct {
	Messages *service.MessageService
	Engine   *realtime.Engine
}

// HandleList returns the decrypted conversation history with a friend.
func (h *ChatsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := ctx.Value(httpx.CtxKeyUserID).(string)
	if !ok || userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "access token invalid")
		return
	}

	friendSlug := strings.TrimSpace(r.URL.Query().Get("friend"))
	if friendSlug == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "validation", "friend query parameter is required")
		return
	}

	views, err := h.Messages.History(ctx, userID, friendSlug)
	if err != nil {
		writeChatError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, views)
}

type sendMessageRequest struct {
	FriendSlug string `json:"friendSlug"`
	Content    string `json:"content"`
}

// HandleSend routes a message through the realtime engine, sharing one
// delivery path with websocket sends.
func (h *ChatsHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := ctx.Value(httpx.CtxKeyUserID).(string)
	if !ok || userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "access token invalid")
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "validation", "invalid request body")
		return
	}
	if strings.TrimSpace(req.FriendSlug) == "" || strings.TrimSpace(req.Content) == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "validation", "friendSlug and content are required")
		return
	}

	friend, err := h.Messages.ResolveFriend(ctx, userID, req.FriendSlug)
	if err != nil {
		writeChatError(w, r, err)
		return
	}

	view, err := h.Engine.RouteMessage(ctx, userID, friend.ID, req.Content)
	if err != nil {
		slogx.FromContext(ctx).Error("message send failed", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "message could not be sent")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, view)
}

func writeChatError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "friend not found")
	case errors.Is(err, service.ErrNotFriends):
		httpx.WriteError(w, http.StatusForbidden, "not_friends", "you are not friends with this user")
	default:
		slogx.FromContext(r.Context()).Error("chat request failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "request failed")
	}
}
