package domain

// Recipient is one addressable identity a target resolved to. Implementations
// are the platform user, a Slack conversation and a Teams channel; the
// dispatcher never inspects them beyond this contract, channel senders assert
// the concrete type they can address.
type Recipient interface {
	// RecipientID is the dedup key across targets of one request.
	RecipientID() string
	// Preview is the display string surfaced by the preview operation.
	Preview() string
	// TemplateParams are the recipient-derived placeholder values.
	TemplateParams() map[string]string
	// Supports reports whether this recipient is addressable via the method.
	Supports(m DeliveryMethod) bool
}

func (u *User) RecipientID() string { return u.UserID }
func (u *User) Preview() string     { return u.Email }

func (u *User) TemplateParams() map[string]string {
	return map[string]string{
		"recipientEmail":     u.Email,
		"recipientFirstName": u.FirstName,
		"recipientLastName":  u.LastName,
		"recipientTitle":     u.Title(),
	}
}

func (u *User) Supports(m DeliveryMethod) bool {
	switch m {
	case DeliveryWeb, DeliveryEmail, DeliverySMS:
		return true
	}
	return false
}

// SlackRecipient addresses one Slack conversation.
type SlackRecipient struct {
	Conversation SlackConversation
}

func (s *SlackRecipient) RecipientID() string { return "slack:" + s.Conversation.ID }

func (s *SlackRecipient) Preview() string {
	if s.Conversation.Type == SlackDirect && s.Conversation.WholeName != "" {
		return "@" + s.Conversation.WholeName
	}
	return s.Conversation.Name
}

func (s *SlackRecipient) TemplateParams() map[string]string {
	title := s.Conversation.WholeName
	if title == "" {
		title = s.Conversation.Name
	}
	return map[string]string{"recipientTitle": title}
}

func (s *SlackRecipient) Supports(m DeliveryMethod) bool { return m == DeliverySlack }

// TeamsRecipient addresses one Microsoft Teams channel via its incoming webhook.
type TeamsRecipient struct {
	WebhookURL  string
	ChannelName string
}

func (t *TeamsRecipient) RecipientID() string { return "teams:" + t.WebhookURL }
func (t *TeamsRecipient) Preview() string     { return t.ChannelName }

func (t *TeamsRecipient) TemplateParams() map[string]string {
	return map[string]string{"recipientTitle": t.ChannelName}
}

func (t *TeamsRecipient) Supports(m DeliveryMethod) bool { return m == DeliveryTeams }
