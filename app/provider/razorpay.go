package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-donations/app/entity"
)

const (
	razorpaySignatureHeader = "X-Razorpay-Signature"
	razorpayEventIDHeader   = "X-Razorpay-Event-Id"

	razorpaySubscriptionCycles = 120
)

type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
}

// razorpayAPI is the subset of the SDK the provider calls.
type razorpayAPI interface {
	CreateOrder(data map[string]interface{}) (map[string]interface{}, error)
	FetchOrder(orderID string) (map[string]interface{}, error)
	OrderPayments(orderID string) (map[string]interface{}, error)
	CreatePlan(data map[string]interface{}) (map[string]interface{}, error)
	CreateSubscription(data map[string]interface{}) (map[string]interface{}, error)
	FetchSubscription(subscriptionID string) (map[string]interface{}, error)
	SubscriptionInvoices(subscriptionID string) (map[string]interface{}, error)
	FetchPayment(paymentID string) (map[string]interface{}, error)
	RefundPayment(paymentID string, amount int, data map[string]interface{}) (map[string]interface{}, error)
}

type razorpaySDK struct {
	client *razorpay.Client
}

func (s *razorpaySDK) CreateOrder(data map[string]interface{}) (map[string]interface{}, error) {
	return s.client.Order.Create(data, nil)
}

func (s *razorpaySDK) FetchOrder(orderID string) (map[string]interface{}, error) {
	return s.client.Order.Fetch(orderID, nil, nil)
}

func (s *razorpaySDK) OrderPayments(orderID string) (map[string]interface{}, error) {
	return s.client.Order.Payments(orderID, nil, nil)
}

func (s *razorpaySDK) CreatePlan(data map[string]interface{}) (map[string]interface{}, error) {
	return s.client.Plan.Create(data, nil)
}

func (s *razorpaySDK) CreateSubscription(data map[string]interface{}) (map[string]interface{}, error) {
	return s.client.Subscription.Create(data, nil)
}

func (s *razorpaySDK) FetchSubscription(subscriptionID string) (map[string]interface{}, error) {
	return s.client.Subscription.Fetch(subscriptionID, nil, nil)
}

func (s *razorpaySDK) SubscriptionInvoices(subscriptionID string) (map[string]interface{}, error) {
	return s.client.Invoice.All(map[string]interface{}{"subscription_id": subscriptionID}, nil)
}

func (s *razorpaySDK) FetchPayment(paymentID string) (map[string]interface{}, error) {
	return s.client.Payment.Fetch(paymentID, nil, nil)
}

func (s *razorpaySDK) RefundPayment(paymentID string, amount int, data map[string]interface{}) (map[string]interface{}, error) {
	return s.client.Payment.Refund(paymentID, amount, data, nil)
}

type RazorpayProvider struct {
	cfg RazorpayConfig
	api razorpayAPI
}

func NewRazorpayProvider(cfg RazorpayConfig) *RazorpayProvider {
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		cfg.WebhookSecret = cfg.KeySecret
	}
	return &RazorpayProvider{
		cfg: cfg,
		api: &razorpaySDK{client: razorpay.NewClient(cfg.KeyID, cfg.KeySecret)},
	}
}

func (p *RazorpayProvider) Gateway() string {
	return entity.GatewayRazorpay
}

func (p *RazorpayProvider) CreateOrder(ctx context.Context, input *OrderInput) (*OrderOutput, error) {
	if err := p.ready(ctx, "create order"); err != nil {
		return nil, err
	}
	paise, err := ToMinor(input.Amount)
	if err != nil {
		return nil, err
	}

	resp, err := p.api.CreateOrder(map[string]interface{}{
		"amount":   paise,
		"currency": input.Currency,
		"receipt":  input.Receipt,
		"notes": map[string]interface{}{
			"cause":      input.Cause,
			"donor_name": input.DonorName,
		},
	})
	if err != nil {
		return nil, p.wrap("create order", err)
	}

	orderID := stringish(resp["id"])
	if orderID == "" {
		return nil, p.wrap("create order", errors.New("order id missing"))
	}
	keyID := p.cfg.KeyID
	return &OrderOutput{OrderID: orderID, KeyID: &keyID}, nil
}

func (p *RazorpayProvider) CreatePlan(ctx context.Context, amount decimal.Decimal, currency, name string) (string, error) {
	if err := p.ready(ctx, "create plan"); err != nil {
		return "", err
	}
	paise, err := ToMinor(amount)
	if err != nil {
		return "", err
	}

	resp, err := p.api.CreatePlan(map[string]interface{}{
		"period":   "monthly",
		"interval": 1,
		"item": map[string]interface{}{
			"name":     name,
			"amount":   paise,
			"currency": currency,
		},
	})
	if err != nil {
		return "", p.wrap("create plan", err)
	}

	planID := stringish(resp["id"])
	if planID == "" {
		return "", p.wrap("create plan", errors.New("plan id missing"))
	}
	return planID, nil
}

func (p *RazorpayProvider) CreateSubscription(ctx context.Context, input *SubscriptionInput) (*SubscriptionOutput, error) {
	if err := p.ready(ctx, "create subscription"); err != nil {
		return nil, err
	}

	data := map[string]interface{}{
		"plan_id":         input.PlanID,
		"total_count":     razorpaySubscriptionCycles,
		"quantity":        1,
		"customer_notify": 1,
	}
	if input.NotifyEmail != nil && strings.TrimSpace(*input.NotifyEmail) != "" {
		data["notify_info"] = map[string]interface{}{"notify_email": strings.TrimSpace(*input.NotifyEmail)}
	}

	resp, err := p.api.CreateSubscription(data)
	if err != nil {
		return nil, p.wrap("create subscription", err)
	}

	out := &SubscriptionOutput{SubscriptionID: stringish(resp["id"])}
	if out.SubscriptionID == "" {
		return nil, p.wrap("create subscription", errors.New("subscription id missing"))
	}
	if s := stringish(resp["short_url"]); s != "" {
		out.ShortURL = &s
	}
	keyID := p.cfg.KeyID
	out.KeyID = &keyID
	return out, nil
}

func (p *RazorpayProvider) GetOrderStatus(ctx context.Context, orderID string) (*OrderStatus, error) {
	if err := p.ready(ctx, "fetch order"); err != nil {
		return nil, err
	}
	if strings.HasPrefix(orderID, "sub_") {
		return p.subscriptionStatus(orderID)
	}

	order, err := p.api.FetchOrder(orderID)
	if err != nil {
		return nil, p.wrap("fetch order", err)
	}

	status := &OrderStatus{Status: stringish(order["status"])}
	if status.Status != "paid" {
		return status, nil
	}
	status.Paid = true

	payments, err := p.api.OrderPayments(orderID)
	if err != nil {
		return status, nil
	}
	items, _ := payments["items"].([]interface{})
	for _, item := range items {
		payment, ok := item.(map[string]interface{})
		if !ok || stringish(payment["status"]) != "captured" {
			continue
		}
		status.PaymentID = stringish(payment["id"])
		status.Payment = payment
		break
	}
	return status, nil
}

func (p *RazorpayProvider) subscriptionStatus(subscriptionID string) (*OrderStatus, error) {
	sub, err := p.api.FetchSubscription(subscriptionID)
	if err != nil {
		return nil, p.wrap("fetch subscription", err)
	}
	status := &OrderStatus{Status: stringish(sub["status"])}
	if status.Status != "active" {
		return status, nil
	}
	status.Paid = true

	// The first charge is found through the subscription's paid invoice.
	invoices, err := p.api.SubscriptionInvoices(subscriptionID)
	if err != nil {
		return status, nil
	}
	items, _ := invoices["items"].([]interface{})
	for _, item := range items {
		invoice, ok := item.(map[string]interface{})
		if !ok || stringish(invoice["status"]) != "paid" || stringish(invoice["payment_id"]) == "" {
			continue
		}
		status.PaymentID = stringish(invoice["payment_id"])
		if payment, err := p.api.FetchPayment(status.PaymentID); err == nil {
			status.Payment = payment
		}
		break
	}
	return status, nil
}

func (p *RazorpayProvider) FetchPayment(ctx context.Context, _ string, paymentID string) map[string]interface{} {
	if ctx.Err() != nil || strings.TrimSpace(paymentID) == "" {
		return nil
	}
	payment, err := p.api.FetchPayment(paymentID)
	if err != nil {
		return nil
	}
	return payment
}

func (p *RazorpayProvider) Refund(ctx context.Context, input *RefundInput) (*RefundOutput, error) {
	if err := p.ready(ctx, "refund"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.PaymentID) == "" {
		return nil, p.wrap("refund", errors.New("payment id is required"))
	}
	paise, err := ToMinor(input.Amount)
	if err != nil {
		return nil, err
	}

	resp, err := p.api.RefundPayment(input.PaymentID, int(paise), map[string]interface{}{
		"receipt": input.RefundID,
		"speed":   "normal",
	})
	if err != nil {
		return nil, p.wrap("refund", err)
	}
	return &RefundOutput{RefundID: stringish(resp["id"]), Status: stringish(resp["status"])}, nil
}

// VerifyPaymentSignature checks the checkout signature. Subscription
// checkouts sign payment_id|subscription_id, one-time orders sign
// order_id|payment_id.
func (p *RazorpayProvider) VerifyPaymentSignature(ref PaymentReference, signature string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" || ref.PaymentID == "" {
		return false
	}

	var message string
	if ref.SubscriptionID != "" {
		message = ref.PaymentID + "|" + ref.SubscriptionID
	} else if ref.OrderID != "" {
		message = ref.OrderID + "|" + ref.PaymentID
	} else {
		return false
	}
	return verifyHexHMAC([]byte(message), signature, p.cfg.KeySecret)
}

func (p *RazorpayProvider) VerifyWebhookSignature(body []byte, headers http.Header) bool {
	return verifyHexHMAC(body, headers.Get(razorpaySignatureHeader), p.cfg.WebhookSecret)
}

func (p *RazorpayProvider) ParseWebhook(body []byte, headers http.Header) (*WebhookEvent, error) {
	var envelope struct {
		Event   string `json:"event"`
		Payload struct {
			Payment struct {
				Entity map[string]interface{} `json:"entity"`
			} `json:"payment"`
			Subscription struct {
				Entity map[string]interface{} `json:"entity"`
			} `json:"subscription"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}

	event := &WebhookEvent{
		EventID:   strings.TrimSpace(headers.Get(razorpayEventIDHeader)),
		EventType: envelope.Event,
		Payment:   envelope.Payload.Payment.Entity,
	}
	if event.EventID == "" {
		event.EventID = bodyDigest(body)
	}

	if payment := envelope.Payload.Payment.Entity; payment != nil {
		event.OrderID = stringish(payment["order_id"])
		event.PaymentID = stringish(payment["id"])
		event.Currency = stringish(payment["currency"])
		if paise, ok := numberish(payment["amount"]); ok {
			amount := paise.Div(hundred)
			event.Amount = &amount
		}
	}
	if sub := envelope.Payload.Subscription.Entity; sub != nil {
		event.SubscriptionID = stringish(sub["id"])
	}

	switch envelope.Event {
	case "payment.captured", "subscription.charged":
		event.Outcome = WebhookOutcomeSucceeded
	case "payment.failed":
		event.Outcome = WebhookOutcomeAttemptFailed
	default:
		event.Outcome = WebhookOutcomeIgnored
	}
	return event, nil
}

func (p *RazorpayProvider) ready(ctx context.Context, op string) error {
	if strings.TrimSpace(p.cfg.KeyID) == "" || strings.TrimSpace(p.cfg.KeySecret) == "" {
		return p.wrap(op, errors.New("razorpay credentials are not configured"))
	}
	return ctx.Err()
}

func (p *RazorpayProvider) wrap(op string, err error) error {
	var netErr net.Error
	return &GatewayError{
		Gateway:   entity.GatewayRazorpay,
		Op:        op,
		Retryable: errors.As(err, &netErr),
		Err:       err,
	}
}

func verifyHexHMAC(message []byte, signature, secret string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" || strings.TrimSpace(secret) == "" {
		return false
	}
	candidate, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(message)
	return hmac.Equal(candidate, mac.Sum(nil))
}

func bodyDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return fmt.Sprintf("sha256:%x", sum)
}
