package sns

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/notify-dispatch/internal/application/dispatch"
	"github.com/notify-dispatch/internal/config"
	"github.com/notify-dispatch/internal/domain"
)

// Sender delivers SMS notifications via AWS SNS.
type Sender struct {
	client *sns.Client
}

func NewSender(cfg *config.Config) (*Sender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.SNSRegion),
	)
	if err != nil {
		return nil, err
	}
	return &Sender{client: sns.NewFromConfig(awsCfg)}, nil
}

func (s *Sender) Method() domain.DeliveryMethod { return domain.DeliverySMS }

func (s *Sender) Send(ctx context.Context, msg dispatch.Message) error {
	u, ok := msg.Recipient.(*domain.User)
	if !ok {
		return fmt.Errorf("recipient %s is not an SMS-addressable user", msg.Recipient.RecipientID())
	}
	if u.Phone == "" {
		return fmt.Errorf("user %s has no phone number", u.UserID)
	}
	// SMS has no subject line; the body carries everything.
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: &u.Phone,
		Message:     &msg.Template.Body,
	})
	return err
}
