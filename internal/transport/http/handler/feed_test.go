package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/notify-dispatch/internal/application/feed"
	"github.com/notify-dispatch/internal/domain"
	jwtinfra "github.com/notify-dispatch/internal/infrastructure/jwt"
	"github.com/notify-dispatch/internal/transport/http/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFeedStore backs the hub with a fixed set of unread notifications.
type stubFeedStore struct {
	mu     sync.Mutex
	unread []domain.Notification
}

func (s *stubFeedStore) ListUnread(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Notification, 0, len(s.unread))
	for _, n := range s.unread {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *stubFeedStore) CountUnread(ctx context.Context, recipientID string) (int, error) {
	n, err := s.ListUnread(ctx, recipientID, 0)
	return len(n), err
}

func (s *stubFeedStore) MarkAsRead(ctx context.Context, recipientID, notificationID string) error {
	return nil
}

func (s *stubFeedStore) MarkAllAsRead(ctx context.Context, recipientID string) error {
	return nil
}

func (s *stubFeedStore) add(n domain.Notification) {
	s.mu.Lock()
	s.unread = append(s.unread, n)
	s.mu.Unlock()
}

// withClaims injects the given user's claims the way the auth middleware does.
func withClaims(userID string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), middleware.ClaimsKey, &jwtinfra.Claims{UserID: userID, TenantID: "t1"})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// readFrame blocks until one SSE data frame arrives and decodes it.
func readFrame(t *testing.T, reader *bufio.Reader) feed.Update {
	t.Helper()
	type result struct {
		u   feed.Update
		err error
	}
	done := make(chan result, 1)
	go func() {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				done <- result{err: err}
				return
			}
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var u feed.Update
			err = json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &u)
			done <- result{u: u, err: err}
			return
		}
	}()
	select {
	case r := <-done:
		require.NoError(t, r.err)
		return r.u
	case <-time.After(5 * time.Second):
		t.Fatal("no frame arrived")
		return feed.Update{}
	}
}

func TestSubscribe_StreamOutlivesServerWriteTimeout(t *testing.T) {
	store := &stubFeedStore{}
	hub := feed.NewHub(store, zerolog.Nop())
	h := NewFeedHandler(hub, 10)

	srv := httptest.NewUnstartedServer(withClaims("user-1", http.HandlerFunc(h.Subscribe)))
	srv.Config.WriteTimeout = 100 * time.Millisecond
	srv.Start()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/notifications/feed")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reader := bufio.NewReader(resp.Body)

	first := readFrame(t, reader)
	assert.Equal(t, feed.KindFull, first.Kind)
	assert.Equal(t, 0, first.TotalUnreadCount)

	// Well past the server's write timeout the connection must still accept
	// pushed frames.
	time.Sleep(300 * time.Millisecond)
	n := domain.Notification{
		NotificationID: "n1", TenantID: "t1", RecipientID: "user-1",
		RequestID: "req-1", Subject: "Hello", Text: "still streaming",
		CreatedAt: time.Now().UnixMilli(),
	}
	store.add(n)
	hub.OnNewNotification(context.Background(), &n)

	second := readFrame(t, reader)
	assert.Equal(t, feed.KindPartial, second.Kind)
	assert.Equal(t, 1, second.TotalUnreadCount)
	require.NotNil(t, second.Notification)
	assert.Equal(t, "n1", second.Notification.NotificationID)
}

func TestSubscribe_CountOnly(t *testing.T) {
	store := &stubFeedStore{}
	store.add(domain.Notification{NotificationID: "n1", RecipientID: "user-1"})
	hub := feed.NewHub(store, zerolog.Nop())
	h := NewFeedHandler(hub, 10)

	srv := httptest.NewServer(withClaims("user-1", http.HandlerFunc(h.Subscribe)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/notifications/feed?count_only=true")
	require.NoError(t, err)
	defer resp.Body.Close()

	first := readFrame(t, bufio.NewReader(resp.Body))
	assert.Equal(t, feed.KindCount, first.Kind)
	assert.Equal(t, 1, first.TotalUnreadCount)
	assert.Nil(t, first.Notifications)
}
