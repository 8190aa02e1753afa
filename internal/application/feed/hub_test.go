package feed

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/notify-dispatch/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

// memStore is an in-memory notification store; the hub recomputes counts and
// windows from it on every push, so tests mutate it directly.
type memStore struct {
	mu    sync.Mutex
	items []domain.Notification
}

func (s *memStore) add(n domain.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Newest first, like the created_at-descending store query.
	s.items = append([]domain.Notification{n}, s.items...)
}

func (s *memStore) removeByRequest(requestID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []domain.Notification
	var affected []string
	for _, n := range s.items {
		if n.RequestID == requestID {
			affected = append(affected, n.RecipientID)
			continue
		}
		kept = append(kept, n)
	}
	s.items = kept
	return affected
}

func (s *memStore) ListUnread(_ context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Notification
	for _, n := range s.items {
		if n.RecipientID == recipientID && !n.Read {
			out = append(out, n)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *memStore) CountUnread(_ context.Context, recipientID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.items {
		if n.RecipientID == recipientID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *memStore) MarkAsRead(_ context.Context, recipientID, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].NotificationID == notificationID && s.items[i].RecipientID == recipientID {
			s.items[i].Read = true
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *memStore) MarkAllAsRead(_ context.Context, recipientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].RecipientID == recipientID {
			s.items[i].Read = true
		}
	}
	return nil
}

type fakeSession struct {
	id   string
	mu   sync.Mutex
	sent []Update
	fail bool
}

func (s *fakeSession) SessionID() string { return s.id }

func (s *fakeSession) Send(u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("transport closed")
	}
	s.sent = append(s.sent, u)
	return nil
}

func (s *fakeSession) last() Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return Update{}
	}
	return s.sent[len(s.sent)-1]
}

// --- helpers ---

func notif(id, recipientID, requestID, text string) domain.Notification {
	return domain.Notification{
		NotificationID: id,
		RecipientID:    recipientID,
		RequestID:      requestID,
		Type:           domain.TypeGeneral,
		Subject:        "Subject",
		Text:           text,
	}
}

func newTestHub(store *memStore) *Hub {
	return NewHub(store, zerolog.Nop())
}

func windowTexts(u Update) []string {
	texts := make([]string, 0, len(u.Notifications))
	for _, n := range u.Notifications {
		texts = append(texts, n.Text)
	}
	sort.Strings(texts)
	return texts
}

// --- tests ---

func TestSubscribe_CountOnly_InitialPush(t *testing.T) {
	store := &memStore{}
	store.add(notif("n1", "u1", "r1", "Notification 1"))
	hub := newTestHub(store)
	sess := &fakeSession{id: "s1"}

	require.NoError(t, hub.Subscribe(context.Background(), "u1", sess, 0))

	last := sess.last()
	assert.Equal(t, KindCount, last.Kind)
	assert.Equal(t, 1, last.TotalUnreadCount)
}

func TestSubscribe_Windowed_InitialFullUpdate(t *testing.T) {
	store := &memStore{}
	store.add(notif("n1", "u1", "r1", "Notification 1"))
	store.add(notif("n2", "u1", "r2", "Notification 2"))
	hub := newTestHub(store)
	sess := &fakeSession{id: "s1"}

	require.NoError(t, hub.Subscribe(context.Background(), "u1", sess, 10))

	last := sess.last()
	assert.Equal(t, KindFull, last.Kind)
	assert.Equal(t, 2, last.TotalUnreadCount)
	assert.Equal(t, []string{"Notification 1", "Notification 2"}, windowTexts(last))
}

func TestOnNewNotification_MultipleSessionsGetPartialUpdate(t *testing.T) {
	store := &memStore{}
	hub := newTestHub(store)
	sess1 := &fakeSession{id: "s1"}
	sess2 := &fakeSession{id: "s2"}
	require.NoError(t, hub.Subscribe(context.Background(), "u1", sess1, 10))
	require.NoError(t, hub.Subscribe(context.Background(), "u1", sess2, 10))

	n := notif("n1", "u1", "r1", "Notification")
	store.add(n)
	hub.OnNewNotification(context.Background(), &n)

	for _, sess := range []*fakeSession{sess1, sess2} {
		last := sess.last()
		assert.Equal(t, KindPartial, last.Kind)
		assert.Equal(t, 1, last.TotalUnreadCount)
		require.NotNil(t, last.Notification)
		assert.Equal(t, "Notification", last.Notification.Text)
		assert.Equal(t, "Subject", last.Notification.Subject)
	}
}

func TestOnNewNotification_CountOnlySessionGetsCountFrame(t *testing.T) {
	store := &memStore{}
	hub := newTestHub(store)
	sess := &fakeSession{id: "s1"}
	require.NoError(t, hub.Subscribe(context.Background(), "u1", sess, 0))

	for i, id := range []string{"n1", "n2"} {
		n := notif(id, "u1", "r1", "Notification")
		store.add(n)
		hub.OnNewNotification(context.Background(), &n)

		last := sess.last()
		assert.Equal(t, KindCount, last.Kind)
		assert.Equal(t, i+1, last.TotalUnreadCount)
		assert.Nil(t, last.Notification)
	}
}

func TestMarkAsRead_DecrementsCountAndDropsFromEveryWindow(t *testing.T) {
	store := &memStore{}
	hub := newTestHub(store)
	sess1 := &fakeSession{id: "s1"}
	sess2 := &fakeSession{id: "s2"}
	require.NoError(t, hub.Subscribe(context.Background(), "u1", sess1, 10))
	require.NoError(t, hub.Subscribe(context.Background(), "u1", sess2, 10))

	for _, id := range []string{"n1", "n2"} {
		n := notif(id, "u1", "r1", "Notification "+id[1:])
		store.add(n)
		hub.OnNewNotification(context.Background(), &n)
	}

	require.NoError(t, hub.MarkAsRead(context.Background(), "u1", "n1"))

	for _, sess := range []*fakeSession{sess1, sess2} {
		last := sess.last()
		assert.Equal(t, KindFull, last.Kind)
		assert.Equal(t, 1, last.TotalUnreadCount)
		assert.Equal(t, []string{"Notification 2"}, windowTexts(last))
	}
}

func TestMarkAsRead_OlderNotificationBackfillsWindow(t *testing.T) {
	store := &memStore{}
	hub := newTestHub(store)
	sess := &fakeSession{id: "s1"}

	// 3 unread, window of 2: the window shows the 2 newest.
	for _, id := range []string{"n1", "n2", "n3"} {
		store.add(notif(id, "u1", "r1", "Notification "+id[1:]))
	}
	require.NoError(t, hub.Subscribe(context.Background(), "u1", sess, 2))
	assert.Equal(t, []string{"Notification 2", "Notification 3"}, windowTexts(sess.last()))

	require.NoError(t, hub.MarkAsRead(context.Background(), "u1", "n3"))

	last := sess.last()
	assert.Equal(t, 2, last.TotalUnreadCount)
	assert.Equal(t, []string{"Notification 1", "Notification 2"}, windowTexts(last))
}

func TestMarkAllAsRead_EmptiesWindowAndZeroesCount(t *testing.T) {
	store := &memStore{}
	hub := newTestHub(store)
	sess := &fakeSession{id: "s1"}
	require.NoError(t, hub.Subscribe(context.Background(), "u1", sess, 10))

	for i := 0; i < 20; i++ {
		n := notif("n"+string(rune('a'+i)), "u1", "r1", "Test")
		store.add(n)
		hub.OnNewNotification(context.Background(), &n)
	}
	assert.Equal(t, 20, sess.last().TotalUnreadCount)

	require.NoError(t, hub.MarkAllAsRead(context.Background(), "u1"))

	last := sess.last()
	assert.Equal(t, KindFull, last.Kind)
	assert.Zero(t, last.TotalUnreadCount)
	assert.Empty(t, last.Notifications)
}

func TestOnRequestDeleted_RemovesNotificationsFromEverySession(t *testing.T) {
	store := &memStore{}
	hub := newTestHub(store)
	sess1 := &fakeSession{id: "s1"}
	sess2 := &fakeSession{id: "s2"}
	require.NoError(t, hub.Subscribe(context.Background(), "u1", sess1, 10))
	require.NoError(t, hub.Subscribe(context.Background(), "u1", sess2, 10))

	n := notif("n1", "u1", "r1", "Test")
	store.add(n)
	hub.OnNewNotification(context.Background(), &n)
	assert.Equal(t, 1, sess1.last().TotalUnreadCount)

	affected := store.removeByRequest("r1")
	hub.OnRequestDeleted(context.Background(), "r1", affected)

	for _, sess := range []*fakeSession{sess1, sess2} {
		last := sess.last()
		assert.Equal(t, KindFull, last.Kind)
		assert.Zero(t, last.TotalUnreadCount)
		assert.Empty(t, last.Notifications)
	}
}

func TestUnsubscribe_StopsPushesAndCollectsBucket(t *testing.T) {
	store := &memStore{}
	hub := newTestHub(store)
	sess := &fakeSession{id: "s1"}
	require.NoError(t, hub.Subscribe(context.Background(), "u1", sess, 10))

	hub.Unsubscribe("u1", "s1")
	frames := len(sess.sent)

	n := notif("n1", "u1", "r1", "Test")
	store.add(n)
	hub.OnNewNotification(context.Background(), &n)

	assert.Len(t, sess.sent, frames)
	hub.mu.RLock()
	_, exists := hub.buckets["u1"]
	hub.mu.RUnlock()
	assert.False(t, exists)
}

func TestPushFailure_DropsOnlyTheDeadSession(t *testing.T) {
	store := &memStore{}
	hub := newTestHub(store)
	dead := &fakeSession{id: "dead"}
	live := &fakeSession{id: "live"}
	require.NoError(t, hub.Subscribe(context.Background(), "u1", dead, 10))
	require.NoError(t, hub.Subscribe(context.Background(), "u1", live, 10))
	dead.mu.Lock()
	dead.fail = true
	dead.mu.Unlock()

	n := notif("n1", "u1", "r1", "Test")
	store.add(n)
	hub.OnNewNotification(context.Background(), &n)

	assert.Equal(t, 1, live.last().TotalUnreadCount)

	// The dead session no longer receives anything.
	n2 := notif("n2", "u1", "r1", "Test 2")
	store.add(n2)
	hub.OnNewNotification(context.Background(), &n2)
	assert.Equal(t, 2, live.last().TotalUnreadCount)
}

func TestConcurrentSubscribeAndPush_DifferentRecipients(t *testing.T) {
	store := &memStore{}
	hub := newTestHub(store)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		recipientID := "u" + string(rune('a'+i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess := &fakeSession{id: "s-" + recipientID}
			_ = hub.Subscribe(context.Background(), recipientID, sess, 10)
			n := notif("n-"+recipientID, recipientID, "r1", "Test")
			store.add(n)
			hub.OnNewNotification(context.Background(), &n)
			assert.Equal(t, 1, sess.last().TotalUnreadCount)
		}()
	}
	wg.Wait()
}
