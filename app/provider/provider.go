package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

var ErrGateway = errors.New("gateway request failed")

// GatewayError wraps a failed provider call. Retryable is set for network
// failures and 5xx responses.
type GatewayError struct {
	Gateway   string
	Op        string
	Retryable bool
	Err       error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Gateway, e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func (e *GatewayError) Is(target error) bool {
	return target == ErrGateway
}

type OrderInput struct {
	DonationID uint64
	Receipt    string
	Amount     decimal.Decimal
	Currency   string
	Cause      string

	DonorName  string
	DonorEmail string
	DonorPhone string

	ReturnURL string
}

type OrderOutput struct {
	OrderID          string
	PaymentSessionID *string
	KeyID            *string
}

type SubscriptionInput struct {
	DonationID  uint64
	PlanID      string
	NotifyEmail *string
}

type SubscriptionOutput struct {
	SubscriptionID string
	ShortURL       *string
	KeyID          *string
}

// OrderStatus is the result of polling an order. PaymentID and Payment are
// filled from the captured payment when the gateway reports one.
type OrderStatus struct {
	Paid      bool
	Status    string
	PaymentID string
	Payment   map[string]interface{}
}

type PaymentReference struct {
	OrderID        string
	PaymentID      string
	SubscriptionID string
}

const (
	WebhookOutcomeIgnored = iota
	WebhookOutcomeSucceeded
	WebhookOutcomeAttemptFailed
)

type WebhookEvent struct {
	EventID   string
	EventType string
	Outcome   int

	OrderID        string
	PaymentID      string
	SubscriptionID string

	Amount   *decimal.Decimal
	Currency string
	Payment  map[string]interface{}
}

// References returns the ids a donation may be stored under, order id
// first. A subscription charge carries a fresh per-charge order id while the
// donation is keyed by its subscription.
func (e *WebhookEvent) References() []string {
	refs := make([]string, 0, 2)
	if e.OrderID != "" {
		refs = append(refs, e.OrderID)
	}
	if e.SubscriptionID != "" && e.SubscriptionID != e.OrderID {
		refs = append(refs, e.SubscriptionID)
	}
	return refs
}

type RefundInput struct {
	RefundID  string
	OrderID   string
	PaymentID string
	Amount    decimal.Decimal
}

type RefundOutput struct {
	RefundID string
	Status   string
}

type Provider interface {
	Gateway() string
	CreateOrder(ctx context.Context, input *OrderInput) (*OrderOutput, error)
	GetOrderStatus(ctx context.Context, orderID string) (*OrderStatus, error)
	// FetchPayment is best effort and returns nil on any failure.
	FetchPayment(ctx context.Context, orderID, paymentID string) map[string]interface{}
	VerifyWebhookSignature(body []byte, headers http.Header) bool
	// ParseWebhook must only be called on a body whose signature was verified.
	ParseWebhook(body []byte, headers http.Header) (*WebhookEvent, error)
	Refund(ctx context.Context, input *RefundInput) (*RefundOutput, error)
}

// PaymentSigner is implemented by gateways whose checkout returns a
// client-side signature.
type PaymentSigner interface {
	VerifyPaymentSignature(ref PaymentReference, signature string) bool
}

type RecurringProvider interface {
	CreatePlan(ctx context.Context, amount decimal.Decimal, currency, name string) (string, error)
	CreateSubscription(ctx context.Context, input *SubscriptionInput) (*SubscriptionOutput, error)
}
