package domain

// RequestInfo carries the origin context of a notification request: which
// entity and action triggered it. Its fields become template parameters.
type RequestInfo struct {
	EntityType string `json:"entity_type,omitempty" dynamodbav:"entity_type"`
	EntityID   string `json:"entity_id,omitempty" dynamodbav:"entity_id"`
	ActionType string `json:"action_type,omitempty" dynamodbav:"action_type"`
	UserID     string `json:"user_id,omitempty" dynamodbav:"user_id"`
}

// TemplateParams exposes the request context as placeholder parameters.
func (i *RequestInfo) TemplateParams() map[string]string {
	if i == nil {
		return nil
	}
	params := make(map[string]string, 2)
	if i.EntityType != "" {
		params["entityType"] = i.EntityType
	}
	if i.ActionType != "" {
		params["actionType"] = i.ActionType
	}
	return params
}

// NotificationRequest is one submission: a template applied to a set of
// targets, dispatched immediately or after DelaySec.
type NotificationRequest struct {
	RequestID  string       `json:"id" dynamodbav:"request_id"`
	TenantID   string       `json:"tenant_id" dynamodbav:"tenant_id"`
	TemplateID string       `json:"template_id" dynamodbav:"template_id"`
	Targets    []string     `json:"targets" dynamodbav:"targets"`
	Info       *RequestInfo `json:"info,omitempty" dynamodbav:"info"`
	// RuleID links a request to the rule that originated it. When set, the
	// per-user notification settings are consulted before each send.
	RuleID    string        `json:"rule_id,omitempty" dynamodbav:"rule_id"`
	DelaySec  int           `json:"delay_sec,omitempty" dynamodbav:"delay_sec"`
	Status    RequestStatus `json:"status" dynamodbav:"status"`
	Stats     *RequestStats `json:"stats,omitempty" dynamodbav:"stats"`
	CreatedAt int64         `json:"created_time" dynamodbav:"created_at"`
}

func (r *NotificationRequest) IsSent() bool { return r.Status == RequestSent }

// RequestStats is the persisted per-request delivery outcome: a success count
// per method and a recipient-keyed error map per method. It is the single
// source of truth for partial failure.
type RequestStats struct {
	Sent   map[DeliveryMethod]int64             `json:"sent" dynamodbav:"sent"`
	Errors map[DeliveryMethod]map[string]string `json:"errors" dynamodbav:"errors"`
	// TargetErrors records targets excluded from the dispatch because they
	// could not be resolved, keyed by target id.
	TargetErrors map[string]string `json:"target_errors,omitempty" dynamodbav:"target_errors,omitempty"`
}

// RequestInfoView is the listing projection of a request: the request itself
// plus template name and delivery methods, for operator-facing tables.
type RequestInfoView struct {
	NotificationRequest
	TemplateName    string           `json:"template_name"`
	DeliveryMethods []DeliveryMethod `json:"delivery_methods"`
}

// RequestPreview is the dry-run result of a request: recipient counts and
// representative rendered templates, computed without sending anything.
type RequestPreview struct {
	TotalRecipientsCount    int                                `json:"total_recipients_count"`
	RecipientsCountByTarget map[string]int                     `json:"recipients_count_by_target"`
	RecipientsPreview       []string                           `json:"recipients_preview"`
	ProcessedTemplates      map[DeliveryMethod]*MethodTemplate `json:"processed_templates"`
	TargetErrors            map[string]string                  `json:"target_errors,omitempty"`
}
