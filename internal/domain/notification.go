package domain

// Notification is one in-app (WEB) delivery: created exactly once per
// (request, recipient) pair, mutated only by mark-as-read, deleted when its
// owning request is deleted.
type Notification struct {
	NotificationID string           `json:"id" dynamodbav:"notification_id"`
	TenantID       string           `json:"tenant_id" dynamodbav:"tenant_id"`
	RecipientID    string           `json:"recipient_id" dynamodbav:"recipient_id"`
	RequestID      string           `json:"request_id" dynamodbav:"request_id"`
	Type           NotificationType `json:"type" dynamodbav:"type"`
	Subject        string           `json:"subject" dynamodbav:"subject"`
	Text           string           `json:"text" dynamodbav:"text"`
	Read           bool             `json:"read" dynamodbav:"read"`
	CreatedAt      int64            `json:"created_time" dynamodbav:"created_at"`
}
