package domain

// NotificationTemplate is tenant-defined content with per-delivery-method
// variants and ${name} placeholder parameters.
type NotificationTemplate struct {
	TemplateID string                             `json:"id" dynamodbav:"template_id"`
	TenantID   string                             `json:"tenant_id" dynamodbav:"tenant_id"`
	Name       string                             `json:"name" dynamodbav:"name"`
	Type       NotificationType                   `json:"notification_type" dynamodbav:"notification_type"`
	Deliveries map[DeliveryMethod]*MethodTemplate `json:"delivery_methods" dynamodbav:"delivery_methods"`
	CreatedAt  int64                              `json:"created_time" dynamodbav:"created_at"`
}

// EnabledMethods returns the delivery methods this template is enabled for.
func (t *NotificationTemplate) EnabledMethods() []DeliveryMethod {
	var methods []DeliveryMethod
	for _, m := range []DeliveryMethod{DeliveryWeb, DeliveryEmail, DeliverySMS, DeliverySlack, DeliveryTeams} {
		if mt, ok := t.Deliveries[m]; ok && mt != nil && mt.Enabled {
			methods = append(methods, m)
		}
	}
	return methods
}

// MethodTemplate is the content variant for a single delivery method.
// ThemeColor and Button are Microsoft Teams extras and stay empty elsewhere.
type MethodTemplate struct {
	Enabled    bool            `json:"enabled" dynamodbav:"enabled"`
	Subject    string          `json:"subject,omitempty" dynamodbav:"subject"`
	Body       string          `json:"body" dynamodbav:"body"`
	ThemeColor string          `json:"theme_color,omitempty" dynamodbav:"theme_color"`
	Button     *TemplateButton `json:"button,omitempty" dynamodbav:"button"`
}

// Copy returns a deep copy, so rendering never mutates the stored template.
func (mt *MethodTemplate) Copy() *MethodTemplate {
	cp := *mt
	if mt.Button != nil {
		b := *mt.Button
		cp.Button = &b
	}
	return &cp
}

// TemplateButton is an action button attached to Teams messages.
type TemplateButton struct {
	Enabled bool   `json:"enabled" dynamodbav:"enabled"`
	Text    string `json:"text" dynamodbav:"text"`
	Link    string `json:"link" dynamodbav:"link"`
}
