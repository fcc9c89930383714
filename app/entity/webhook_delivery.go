package entity

import "time"

const (
	WebhookDeliveryProcessed int32 = 10
	WebhookDeliveryRejected  int32 = 20
	WebhookDeliveryIgnored   int32 = 30
)

type WebhookDelivery struct {
	ID uint64

	DonationID *uint64

	Gateway     string
	EventType   string
	DedupeKey   string
	Signature   string
	PayloadJSON string
	Status      int32
	Error       *string

	CreatedAt time.Time
}
