package domain

// Target configuration variants. The Type tag selects how the target resolves
// to recipients; only the fields of the selected variant are meaningful.
type TargetType string

const (
	TargetPlatformUsers TargetType = "PLATFORM_USERS"
	TargetSlack         TargetType = "SLACK"
	TargetTeams         TargetType = "MICROSOFT_TEAMS"
)

// Users filter kinds for PLATFORM_USERS targets.
type UsersFilterType string

const (
	FilterAllUsers      UsersFilterType = "ALL_USERS"
	FilterUserList      UsersFilterType = "USER_LIST"
	FilterCustomerUsers UsersFilterType = "CUSTOMER_USERS"
	FilterTenantAdmins  UsersFilterType = "TENANT_ADMINS"
	FilterSystemAdmins  UsersFilterType = "SYSTEM_ADMINS"
)

// NotificationTarget is a named rule for resolving zero or more recipients.
type NotificationTarget struct {
	TargetID  string       `json:"id" dynamodbav:"target_id"`
	TenantID  string       `json:"tenant_id" dynamodbav:"tenant_id"`
	Name      string       `json:"name" dynamodbav:"name"`
	Config    TargetConfig `json:"configuration" dynamodbav:"configuration"`
	CreatedAt int64        `json:"created_time" dynamodbav:"created_at"`
}

// TargetConfig is a tagged union over Type.
type TargetConfig struct {
	Type TargetType `json:"type" dynamodbav:"type"`

	// PLATFORM_USERS
	Filter     UsersFilterType `json:"users_filter,omitempty" dynamodbav:"users_filter"`
	UserIDs    []string        `json:"user_ids,omitempty" dynamodbav:"user_ids"`
	CustomerID string          `json:"customer_id,omitempty" dynamodbav:"customer_id"`

	// SLACK
	Conversation *SlackConversation `json:"conversation,omitempty" dynamodbav:"conversation"`

	// MICROSOFT_TEAMS
	WebhookURL  string `json:"webhook_url,omitempty" dynamodbav:"webhook_url"`
	ChannelName string `json:"channel_name,omitempty" dynamodbav:"channel_name"`
}

// SlackConversationType distinguishes DMs from channels.
type SlackConversationType string

const (
	SlackDirect  SlackConversationType = "DIRECT"
	SlackPublic  SlackConversationType = "PUBLIC_CHANNEL"
	SlackPrivate SlackConversationType = "PRIVATE_CHANNEL"
)

// SlackConversation identifies one Slack channel or DM.
type SlackConversation struct {
	Type      SlackConversationType `json:"type" dynamodbav:"type"`
	ID        string                `json:"id" dynamodbav:"id"`
	Name      string                `json:"name" dynamodbav:"name"`
	WholeName string                `json:"whole_name,omitempty" dynamodbav:"whole_name"`
}
