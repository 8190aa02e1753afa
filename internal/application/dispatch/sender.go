package dispatch

import (
	"context"

	"github.com/notify-dispatch/internal/domain"
)

// Message is one rendered send: the content for a single recipient over a
// single delivery method.
type Message struct {
	TenantID  string
	RequestID string
	Type      domain.NotificationType
	Template  *domain.MethodTemplate
	Recipient domain.Recipient
}

// Sender is the contract for one delivery channel. Implementations handle
// their own transport; a failed send returns an error that is recorded as
// that recipient's entry in the request stats and never aborts sibling sends.
type Sender interface {
	// Method returns the delivery method this sender serves.
	Method() domain.DeliveryMethod

	// Send delivers a rendered message to one recipient.
	Send(ctx context.Context, msg Message) error
}
