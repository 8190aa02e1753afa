package domain

// NotificationPref is a user's preference for one notification type.
type NotificationPref struct {
	Enabled                bool                    `json:"enabled" dynamodbav:"enabled"`
	EnabledDeliveryMethods map[DeliveryMethod]bool `json:"enabled_delivery_methods" dynamodbav:"enabled_delivery_methods"`
}

// UserNotificationSettings holds a user's opt-in/opt-out matrix. It is
// consulted only for rule-originated requests; direct submissions ignore it.
type UserNotificationSettings struct {
	UserID string                                `json:"user_id" dynamodbav:"user_id"`
	Prefs  map[NotificationType]NotificationPref `json:"prefs" dynamodbav:"prefs"`
}

// MethodEnabled reports whether the user accepts notifications of the given
// type over the given method. Types without an explicit preference default
// to enabled.
func (s *UserNotificationSettings) MethodEnabled(t NotificationType, m DeliveryMethod) bool {
	if s == nil {
		return true
	}
	pref, ok := s.Prefs[t]
	if !ok {
		return true
	}
	if !pref.Enabled {
		return false
	}
	enabled, ok := pref.EnabledDeliveryMethods[m]
	if !ok {
		return true
	}
	return enabled
}

// NotificationSettings holds tenant-wide channel credentials.
type NotificationSettings struct {
	TenantID      string `json:"tenant_id" dynamodbav:"tenant_id"`
	SlackBotToken string `json:"slack_bot_token,omitempty" dynamodbav:"slack_bot_token"`
}
