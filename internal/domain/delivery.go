package domain

// DeliveryMethod identifies one notification channel.
type DeliveryMethod string

const (
	DeliveryWeb   DeliveryMethod = "WEB"
	DeliveryEmail DeliveryMethod = "EMAIL"
	DeliverySMS   DeliveryMethod = "SMS"
	DeliverySlack DeliveryMethod = "SLACK"
	DeliveryTeams DeliveryMethod = "MICROSOFT_TEAMS"
)

// NotificationType is the semantic category of a notification.
type NotificationType string

const (
	TypeGeneral       NotificationType = "GENERAL"
	TypeEntityAction  NotificationType = "ENTITY_ACTION"
	TypeEntitiesLimit NotificationType = "ENTITIES_LIMIT"
	TypeAPIUsageLimit NotificationType = "API_USAGE_LIMIT"
)

// RequestStatus is the lifecycle state of a notification request.
// Transitions are monotonic: SCHEDULED → PROCESSING → SENT.
type RequestStatus string

const (
	RequestScheduled  RequestStatus = "SCHEDULED"
	RequestProcessing RequestStatus = "PROCESSING"
	RequestSent       RequestStatus = "SENT"
)
