package entity

import "time"

const (
	EventSourceVerify    = "verify"
	EventSourceWebhook   = "webhook"
	EventSourceReconcile = "reconcile"
	EventSourceExpire    = "expire"
	EventSourceAdmin     = "admin"
	EventSourceSystem    = "system"
)

type DonationEvent struct {
	ID uint64

	DonationID uint64

	EventType string
	Source    string

	OldStatus *string
	NewStatus string

	GatewayEventID *string
	PayloadJSON    *string

	CreatedAt time.Time
}
