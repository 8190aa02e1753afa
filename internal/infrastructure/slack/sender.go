package slack

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
	"golang.org/x/time/rate"
)

type settingsStore interface {
	GetTenantSettings(ctx context.Context, tenantID string) (*domain.NotificationSettings, error)
}

// Sender delivers notifications to Slack conversations through the
// chat.postMessage Web API, authenticated with the tenant's bot token.
type Sender struct {
	httpClient *http.Client
	settings   settingsStore
	apiURL     string
	limiter    *rate.Limiter
}

func NewSender(cfg *config.Config, settings settingsStore) *Sender {
	return &Sender{
		httpClient: &http.Client{Timeout: cfg.ChannelTimeout},
		settings:   settings,
		apiURL:     cfg.SlackAPIURL,
		limiter:    rate.NewLimiter(rate.Limit(cfg.SlackRatePerSec), cfg.SlackRatePerSec),
	}
}

func (s *Sender) Method() domain.DeliveryMethod { return domain.DeliverySlack }

type postMessageRequest struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

type postMessageResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (s *Sender) Send(ctx context.Context, msg dispatch.Message) error {
	r, ok := msg.Recipient.(*domain.SlackRecipient)
	if !ok {
		return fmt.Errorf("recipient %s is not a Slack conversation", msg.Recipient.RecipientID())
	}

	settings, err := s.settings.GetTenantSettings(ctx, msg.TenantID)
	if err != nil {
		return fmt.Errorf("tenant %s has no Slack settings: %w", msg.TenantID, err)
	}
	if settings.SlackBotToken == "" {
		return fmt.Errorf("tenant %s has no Slack bot token configured", msg.TenantID)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(postMessageRequest{
		Channel: r.Conversation.ID,
		Text:    msg.Template.Body,
	})
	if err != nil {
		return fmt.Errorf("marshal Slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+settings.SlackBotToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post to Slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack API returned status %d", resp.StatusCode)
	}
	var apiResp postMessageResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&apiResp); err != nil {
		return fmt.Errorf("decode Slack response: %w", err)
	}
	if !apiResp.OK {
		return fmt.Errorf("slack API error: %s", apiResp.Error)
	}
	return nil
}
