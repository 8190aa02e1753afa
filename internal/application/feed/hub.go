package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/notify-dispatch/internal/domain"
	"github.com/rs/zerolog"
)

type notificationStore interface {
	ListUnread(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	MarkAsRead(ctx context.Context, recipientID, notificationID string) error
	MarkAllAsRead(ctx context.Context, recipientID string) error
}

// Hub is the process-wide registry of live subscriber sessions, bucketed per
// recipient so unrelated recipients' pushes never contend on one lock. The
// unread count pushed to any session is always recomputed from the store at
// push time; the hub keeps only the currently-pushed snapshot per session.
type Hub struct {
	mu      sync.RWMutex
	buckets map[string]*bucket

	store notificationStore
	log   zerolog.Logger
}

type bucket struct {
	mu   sync.Mutex
	subs map[string]*subscription
}

type subscription struct {
	session  Session
	pageSize int // 0 means count-only
	// Currently-pushed snapshot, for observability and append decisions.
	lastCount int
	window    []domain.Notification
}

func NewHub(store notificationStore, log zerolog.Logger) *Hub {
	return &Hub{
		buckets: make(map[string]*bucket),
		store:   store,
		log:     log.With().Str("component", "feed-hub").Logger(),
	}
}

// Subscribe registers a session for a recipient. pageSize 0 subscribes for
// unread-count updates only; a positive pageSize subscribes for a window of
// up to pageSize most-recent unread notifications. The current state is
// pushed immediately.
func (h *Hub) Subscribe(ctx context.Context, recipientID string, sess Session, pageSize int) error {
	if pageSize < 0 {
		return fmt.Errorf("negative page size: %w", domain.ErrBadRequest)
	}
	b := h.bucket(recipientID, true)
	sub := &subscription{session: sess, pageSize: pageSize}

	b.mu.Lock()
	b.subs[sess.SessionID()] = sub
	b.mu.Unlock()

	return h.pushCurrent(ctx, recipientID, sub)
}

// Unsubscribe removes a session; the recipient bucket is garbage-collected
// when its last session disconnects.
func (h *Hub) Unsubscribe(recipientID, sessionID string) {
	b := h.bucket(recipientID, false)
	if b == nil {
		return
	}
	b.mu.Lock()
	delete(b.subs, sessionID)
	empty := len(b.subs) == 0
	b.mu.Unlock()

	if empty {
		h.mu.Lock()
		if bb, ok := h.buckets[recipientID]; ok {
			bb.mu.Lock()
			if len(bb.subs) == 0 {
				delete(h.buckets, recipientID)
			}
			bb.mu.Unlock()
		}
		h.mu.Unlock()
	}
}

// OnNewNotification pushes a partial update (the new notification plus the
// recomputed count) to every session of the recipient; count-only sessions
// receive just the count.
func (h *Hub) OnNewNotification(ctx context.Context, n *domain.Notification) {
	b := h.bucket(n.RecipientID, false)
	if b == nil {
		return
	}
	count, err := h.store.CountUnread(ctx, n.RecipientID)
	if err != nil {
		h.log.Error().Err(err).Str("recipient", n.RecipientID).Msg("count unread failed")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for sessionID, sub := range b.subs {
		sub.lastCount = count
		if sub.pageSize == 0 {
			h.send(b, sessionID, sub, Update{Kind: KindCount, TotalUnreadCount: count})
			continue
		}
		sub.window = append([]domain.Notification{*n}, sub.window...)
		if len(sub.window) > sub.pageSize {
			sub.window = sub.window[:sub.pageSize]
		}
		h.send(b, sessionID, sub, Update{Kind: KindPartial, TotalUnreadCount: count, Notification: n})
	}
}

// MarkAsRead marks one notification read and pushes a full update to every
// session of the recipient: the read notification drops out of the window
// and an older unread notification backfills when one exists.
func (h *Hub) MarkAsRead(ctx context.Context, recipientID, notificationID string) error {
	if err := h.store.MarkAsRead(ctx, recipientID, notificationID); err != nil {
		return err
	}
	h.pushFull(ctx, recipientID)
	return nil
}

// MarkAllAsRead marks every unread notification of the recipient read and
// pushes a full (now empty) update to every session.
func (h *Hub) MarkAllAsRead(ctx context.Context, recipientID string) error {
	if err := h.store.MarkAllAsRead(ctx, recipientID); err != nil {
		return err
	}
	h.pushFull(ctx, recipientID)
	return nil
}

// OnRequestDeleted pushes a full update to every session of every affected
// recipient after the owning request's notifications were removed.
func (h *Hub) OnRequestDeleted(ctx context.Context, requestID string, recipientIDs []string) {
	for _, recipientID := range recipientIDs {
		h.pushFull(ctx, recipientID)
	}
	h.log.Debug().Str("request", requestID).Int("recipients", len(recipientIDs)).Msg("request deletion fanned out")
}

func (h *Hub) bucket(recipientID string, create bool) *bucket {
	h.mu.RLock()
	b, ok := h.buckets[recipientID]
	h.mu.RUnlock()
	if ok || !create {
		return b
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if b, ok = h.buckets[recipientID]; ok {
		return b
	}
	b = &bucket{subs: make(map[string]*subscription)}
	h.buckets[recipientID] = b
	return b
}

// pushCurrent pushes the subscription's initial state.
func (h *Hub) pushCurrent(ctx context.Context, recipientID string, sub *subscription) error {
	count, err := h.store.CountUnread(ctx, recipientID)
	if err != nil {
		return err
	}
	sub.lastCount = count
	if sub.pageSize == 0 {
		return sub.session.Send(Update{Kind: KindCount, TotalUnreadCount: count})
	}
	window, err := h.store.ListUnread(ctx, recipientID, sub.pageSize)
	if err != nil {
		return err
	}
	sub.window = window
	return sub.session.Send(Update{Kind: KindFull, TotalUnreadCount: count, Notifications: window})
}

// pushFull recomputes count and window from the store and pushes a full
// update to every session of the recipient.
func (h *Hub) pushFull(ctx context.Context, recipientID string) {
	b := h.bucket(recipientID, false)
	if b == nil {
		return
	}
	count, err := h.store.CountUnread(ctx, recipientID)
	if err != nil {
		h.log.Error().Err(err).Str("recipient", recipientID).Msg("count unread failed")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for sessionID, sub := range b.subs {
		sub.lastCount = count
		if sub.pageSize == 0 {
			h.send(b, sessionID, sub, Update{Kind: KindCount, TotalUnreadCount: count})
			continue
		}
		window, err := h.store.ListUnread(ctx, recipientID, sub.pageSize)
		if err != nil {
			h.log.Error().Err(err).Str("recipient", recipientID).Msg("list unread failed")
			continue
		}
		sub.window = window
		h.send(b, sessionID, sub, Update{Kind: KindFull, TotalUnreadCount: count, Notifications: window})
	}
}

// send pushes one frame; a transport error drops the session. Caller holds b.mu.
func (h *Hub) send(b *bucket, sessionID string, sub *subscription, u Update) {
	if err := sub.session.Send(u); err != nil {
		h.log.Warn().Err(err).Str("session", sessionID).Msg("session push failed, dropping session")
		delete(b.subs, sessionID)
	}
}
