package teams

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/notify-dispatch/internal/application/dispatch"
	"github.com/notify-dispatch/internal/config"
	"github.com/notify-dispatch/internal/domain"
)

const defaultThemeColor = "0076D7"

// Sender delivers notifications to Microsoft Teams channels through their
// incoming webhooks, using the legacy MessageCard payload Teams accepts on
// every webhook version.
type Sender struct {
	httpClient *http.Client
}

func NewSender(cfg *config.Config) *Sender {
	return &Sender{httpClient: &http.Client{Timeout: cfg.ChannelTimeout}}
}

func (s *Sender) Method() domain.DeliveryMethod { return domain.DeliveryTeams }

type messageCard struct {
	Type            string        `json:"@type"`
	Context         string        `json:"@context"`
	ThemeColor      string        `json:"themeColor,omitempty"`
	Summary         string        `json:"summary"`
	Sections        []cardSection `json:"sections"`
	PotentialAction []cardAction  `json:"potentialAction,omitempty"`
}

type cardSection struct {
	ActivityTitle    string `json:"activityTitle,omitempty"`
	ActivitySubtitle string `json:"activitySubtitle,omitempty"`
	Text             string `json:"text,omitempty"`
}

type cardAction struct {
	Type    string       `json:"@type"`
	Name    string       `json:"name"`
	Targets []cardTarget `json:"targets"`
}

type cardTarget struct {
	OS  string `json:"os"`
	URI string `json:"uri"`
}

func (s *Sender) Send(ctx context.Context, msg dispatch.Message) error {
	r, ok := msg.Recipient.(*domain.TeamsRecipient)
	if !ok {
		return fmt.Errorf("recipient %s is not a Teams channel", msg.Recipient.RecipientID())
	}

	card := messageCard{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: msg.Template.ThemeColor,
		Summary:    msg.Template.Subject,
		Sections: []cardSection{{
			ActivityTitle: msg.Template.Subject,
			Text:          msg.Template.Body,
		}},
	}
	if card.ThemeColor == "" {
		card.ThemeColor = defaultThemeColor
	}
	if card.Summary == "" {
		card.Summary = msg.Template.Body
	}
	if b := msg.Template.Button; b != nil && b.Enabled {
		card.PotentialAction = []cardAction{{
			Type: "OpenUri",
			Name: b.Text,
			Targets: []cardTarget{{
				OS:  "default",
				URI: b.Link,
			}},
		}}
	}

	body, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("marshal Teams card: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post to Teams webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("teams webhook returned status %d: %s", resp.StatusCode, detail)
	}
	return nil
}
