package feed

import "github.com/notify-dispatch/internal/domain"

// UpdateKind discriminates the frames pushed to a session.
type UpdateKind string

const (
	// KindCount carries only the total unread count.
	KindCount UpdateKind = "COUNT"
	// KindPartial carries one newly appended notification plus the count.
	// Used only when the change is a pure append to the window.
	KindPartial UpdateKind = "PARTIAL"
	// KindFull carries the entire current unread window plus the count.
	// Used for any non-append change so clients never reconcile diffs
	// against a stale window.
	KindFull UpdateKind = "FULL"
)

// Update is one frame pushed to a subscriber session.
type Update struct {
	Kind             UpdateKind            `json:"kind"`
	TotalUnreadCount int                   `json:"total_unread_count"`
	Notification     *domain.Notification  `json:"notification,omitempty"`
	Notifications    []domain.Notification `json:"notifications,omitempty"`
}

// Session is one live subscriber connection. The transport behind it is a
// collaborator; the hub only pushes frames. A Send error marks the session
// dead and the hub drops it.
type Session interface {
	SessionID() string
	Send(u Update) error
}
