package web

import (
	"context"
	"fmt"
	"time"

	"github.com/notify-dispatch/internal/application/dispatch"
	"github.com/notify-dispatch/internal/application/feed"
	"github.com/notify-dispatch/internal/domain"
	"github.com/notify-dispatch/internal/pkg/id"
)

type notificationStore interface {
	Put(ctx context.Context, n *domain.Notification) error
}

// Sender delivers in-app notifications: each send persists a notification
// row and pushes it to the recipient's live feed sessions.
type Sender struct {
	notifications notificationStore
	hub           *feed.Hub
}

func NewSender(notifications notificationStore, hub *feed.Hub) *Sender {
	return &Sender{notifications: notifications, hub: hub}
}

func (s *Sender) Method() domain.DeliveryMethod { return domain.DeliveryWeb }

func (s *Sender) Send(ctx context.Context, msg dispatch.Message) error {
	u, ok := msg.Recipient.(*domain.User)
	if !ok {
		return fmt.Errorf("recipient %s is not a platform user", msg.Recipient.RecipientID())
	}

	n := &domain.Notification{
		NotificationID: id.New(),
		TenantID:       msg.TenantID,
		RecipientID:    u.UserID,
		RequestID:      msg.RequestID,
		Type:           msg.Type,
		Subject:        msg.Template.Subject,
		Text:           msg.Template.Body,
		CreatedAt:      time.Now().UnixMilli(),
	}
	if err := s.notifications.Put(ctx, n); err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}
	s.hub.OnNewNotification(ctx, n)
	return nil
}
