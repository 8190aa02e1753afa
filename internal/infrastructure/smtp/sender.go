package smtp

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/notify-dispatch/internal/application/dispatch"
	"github.com/notify-dispatch/internal/config"
	"github.com/notify-dispatch/internal/domain"
)

// Sender delivers email notifications over SMTP.
type Sender struct {
	host     string
	port     string
	from     string
	username string
	password string
}

func NewSender(cfg *config.Config) *Sender {
	return &Sender{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
	}
}

func (s *Sender) Method() domain.DeliveryMethod { return domain.DeliveryEmail }

func (s *Sender) Send(ctx context.Context, msg dispatch.Message) error {
	u, ok := msg.Recipient.(*domain.User)
	if !ok {
		return fmt.Errorf("recipient %s is not an email-addressable user", msg.Recipient.RecipientID())
	}
	if u.Email == "" {
		return fmt.Errorf("user %s has no email address", u.UserID)
	}

	raw := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		s.from, u.Email, msg.Template.Subject, msg.Template.Body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	return smtp.SendMail(addr, auth, s.from, []string{u.Email}, []byte(raw))
}
