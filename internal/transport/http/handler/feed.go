package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/notify-dispatch/internal/application/feed"
	"github.com/notify-dispatch/internal/pkg/id"
	"github.com/notify-dispatch/internal/transport/http/middleware"
)

// FeedHandler serves the live notification feed over server-sent events.
// Each connection becomes one hub session: limit=0 subscribes count-only,
// limit>0 subscribes with an unread window of that size.
type FeedHandler struct {
	hub             *feed.Hub
	defaultPageSize int
}

func NewFeedHandler(hub *feed.Hub, defaultPageSize int) *FeedHandler {
	return &FeedHandler{hub: hub, defaultPageSize: defaultPageSize}
}

// sseSession adapts one SSE connection to the hub's Session contract.
// Send is serialized: the hub may push from concurrent dispatch goroutines.
type sseSession struct {
	id      string
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseSession) SessionID() string { return s.id }

func (s *sseSession) Send(u feed.Update) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (h *FeedHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	// The stream stays open for the life of the subscription; the server's
	// global write timeout must not apply to this response.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	pageSize := h.defaultPageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		pageSize = queryInt(r, "limit", h.defaultPageSize)
	}
	if r.URL.Query().Get("count_only") == "true" {
		pageSize = 0
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sess := &sseSession{id: id.New(), w: w, flusher: flusher}
	if err := h.hub.Subscribe(r.Context(), claims.UserID, sess, pageSize); err != nil {
		// Headers already went out; the client sees the stream close.
		return
	}
	defer h.hub.Unsubscribe(claims.UserID, sess.SessionID())

	<-r.Context().Done()
}
