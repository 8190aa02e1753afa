package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/notify-dispatch/internal/application/feed"
	"github.com/notify-dispatch/internal/domain"
	"github.com/notify-dispatch/internal/transport/http/middleware"
)

type notificationStore interface {
	ListByRecipient(ctx context.Context, recipientID string, limit int32, cursor string) ([]domain.Notification, string, error)
	ListUnread(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
}

// NotificationHandler handles per-user notification endpoints. Read state
// changes go through the feed hub so live sessions stay consistent.
type NotificationHandler struct {
	store notificationStore
	hub   *feed.Hub
}

func NewNotificationHandler(store notificationStore, hub *feed.Hub) *NotificationHandler {
	return &NotificationHandler{store: store, hub: hub}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit := queryInt(r, "limit", 20)
	notifications, next, err := h.store.ListByRecipient(r.Context(), claims.UserID, int32(limit), r.URL.Query().Get("cursor"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PageEnvelope{Data: notifications, NextCursor: next})
}

func (h *NotificationHandler) ListUnread(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	notifications, err := h.store.ListUnread(r.Context(), claims.UserID, queryInt(r, "limit", 20))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	count, err := h.store.CountUnread(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.hub.MarkAsRead(r.Context(), claims.UserID, chi.URLParam(r, "id")); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "marked as read"})
}

func (h *NotificationHandler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.hub.MarkAllAsRead(r.Context(), claims.UserID); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "all marked as read"})
}
