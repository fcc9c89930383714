package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-donations/app/entity"
	"github.com/vibast-solutions/ms-go-donations/app/factory"
)

const (
	EventDonationSucceeded = "donation.succeeded"
	EventDonationRefunded  = "donation.refunded"
	EventCertificateSent   = "donation.certificate_sent"
)

// DonationEvent is the message body published for donation lifecycle changes.
type DonationEvent struct {
	EventType      string    `json:"event_type"`
	DonationID     uint64    `json:"donation_id"`
	Status         string    `json:"status"`
	Gateway        string    `json:"gateway"`
	Amount         string    `json:"amount"`
	Currency       string    `json:"currency"`
	Cause          string    `json:"cause"`
	DonationType   string    `json:"donation_type"`
	OrderID        string    `json:"order_id,omitempty"`
	PaymentID      string    `json:"payment_id,omitempty"`
	SubscriptionID string    `json:"subscription_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type conn interface {
	Publish(subj string, data []byte) error
}

// Publisher emits donation events to NATS. Publishing is best effort: the
// payment path never fails because the broker is down.
type Publisher struct {
	conn   conn
	nc     *nats.Conn
	prefix string
	logger logrus.FieldLogger
}

func NewPublisher(url, subjectPrefix string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("donations-service-publisher"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	p := newPublisher(nc, subjectPrefix)
	p.nc = nc
	return p, nil
}

func newPublisher(c conn, subjectPrefix string) *Publisher {
	if subjectPrefix == "" {
		subjectPrefix = "donations"
	}
	return &Publisher{
		conn:   c,
		prefix: subjectPrefix,
		logger: factory.NewModuleLogger("events-publisher"),
	}
}

func (p *Publisher) DonationSucceeded(ctx context.Context, donation *entity.Donation) {
	p.publish(ctx, "succeeded", EventDonationSucceeded, donation)
}

func (p *Publisher) DonationRefunded(ctx context.Context, donation *entity.Donation) {
	p.publish(ctx, "refunded", EventDonationRefunded, donation)
}

func (p *Publisher) CertificateSent(ctx context.Context, donation *entity.Donation) {
	p.publish(ctx, "certificate_sent", EventCertificateSent, donation)
}

func (p *Publisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
	}
}

func (p *Publisher) publish(_ context.Context, suffix, eventType string, donation *entity.Donation) {
	if donation == nil {
		return
	}
	subject := p.prefix + "." + suffix
	data, err := json.Marshal(newDonationEvent(eventType, donation))
	if err != nil {
		p.logger.WithError(err).Error("failed to encode donation event")
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"subject":     subject,
			"donation_id": donation.ID,
		}).Warn("failed to publish donation event")
	}
}

func newDonationEvent(eventType string, donation *entity.Donation) DonationEvent {
	return DonationEvent{
		EventType:      eventType,
		DonationID:     donation.ID,
		Status:         donation.Status,
		Gateway:        donation.Gateway,
		Amount:         donation.Amount.StringFixed(2),
		Currency:       donation.Currency,
		Cause:          donation.Cause,
		DonationType:   donation.Type,
		OrderID:        deref(donation.GatewayOrderID),
		PaymentID:      deref(donation.GatewayPaymentID),
		SubscriptionID: deref(donation.SubscriptionID),
		Timestamp:      time.Now().UTC(),
	}
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
