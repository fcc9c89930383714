package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const webhookDedupePrefix = "donations:webhook:"

// WebhookDedupe remembers processed gateway event ids. A nil client turns
// every call into a no-op and leaves duplicate handling to the status CAS.
type WebhookDedupe struct {
	client *redis.Client
	ttl    time.Duration
}

func NewWebhookDedupe(client *redis.Client, ttl time.Duration) *WebhookDedupe {
	return &WebhookDedupe{client: client, ttl: ttl}
}

func (d *WebhookDedupe) Seen(ctx context.Context, gateway, eventID string) (bool, error) {
	if d == nil || d.client == nil || eventID == "" {
		return false, nil
	}

	n, err := d.client.Exists(ctx, webhookDedupePrefix+gateway+":"+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *WebhookDedupe) Mark(ctx context.Context, gateway, eventID string) error {
	if d == nil || d.client == nil || eventID == "" {
		return nil
	}
	return d.client.Set(ctx, webhookDedupePrefix+gateway+":"+eventID, 1, d.ttl).Err()
}
