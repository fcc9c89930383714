package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-donations/app/entity"
	"golang.org/x/time/rate"
)

const (
	CashfreeSandboxURL    = "https://sandbox.cashfree.com/pg"
	CashfreeProductionURL = "https://api.cashfree.com/pg"

	cashfreeAPIVersion      = "2023-08-01"
	cashfreeTimestampHeader = "x-webhook-timestamp"
	cashfreeSignatureHeader = "x-webhook-signature"
)

type CashfreeConfig struct {
	AppID        string
	SecretKey    string
	Environment  string
	BaseURL      string
	HTTPTimeout  time.Duration
	RequestsPerS float64
}

type CashfreeProvider struct {
	cfg     CashfreeConfig
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func NewCashfreeProvider(cfg CashfreeConfig) *CashfreeProvider {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RequestsPerS
	if rps <= 0 {
		rps = 10
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = CashfreeSandboxURL
		if strings.EqualFold(cfg.Environment, "PROD") {
			baseURL = CashfreeProductionURL
		}
	}

	return &CashfreeProvider{
		cfg:     cfg,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
	}
}

func (p *CashfreeProvider) Gateway() string {
	return entity.GatewayCashfree
}

func (p *CashfreeProvider) CreateOrder(ctx context.Context, input *OrderInput) (*OrderOutput, error) {
	if input.Amount.Exponent() < -2 || !input.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	returnURL := strings.TrimSpace(input.ReturnURL)
	if returnURL != "" {
		returnURL += "?order_id={order_id}"
	}

	payload := map[string]interface{}{
		"order_id":       input.Receipt,
		"order_amount":   json.Number(input.Amount.StringFixed(2)),
		"order_currency": input.Currency,
		"customer_details": map[string]interface{}{
			"customer_id":    fmt.Sprintf("donor_%d", input.DonationID),
			"customer_name":  input.DonorName,
			"customer_email": input.DonorEmail,
			"customer_phone": input.DonorPhone,
		},
		"order_note": input.Cause,
	}
	if returnURL != "" {
		payload["order_meta"] = map[string]interface{}{"return_url": returnURL}
	}

	var resp struct {
		OrderID          string `json:"order_id"`
		PaymentSessionID string `json:"payment_session_id"`
	}
	if err := p.do(ctx, "create order", http.MethodPost, "/orders", payload, &resp); err != nil {
		return nil, err
	}

	orderID := strings.TrimSpace(resp.OrderID)
	if orderID == "" {
		orderID = input.Receipt
	}
	out := &OrderOutput{OrderID: orderID}
	if s := strings.TrimSpace(resp.PaymentSessionID); s != "" {
		out.PaymentSessionID = &s
	}
	return out, nil
}

func (p *CashfreeProvider) GetOrderStatus(ctx context.Context, orderID string) (*OrderStatus, error) {
	var order struct {
		OrderStatus string `json:"order_status"`
	}
	if err := p.do(ctx, "fetch order", http.MethodGet, "/orders/"+url.PathEscape(orderID), nil, &order); err != nil {
		return nil, err
	}

	status := &OrderStatus{Status: order.OrderStatus, Paid: order.OrderStatus == "PAID"}
	if !status.Paid {
		return status, nil
	}

	payments, err := p.orderPayments(ctx, orderID)
	if err != nil {
		return status, nil
	}
	for _, payment := range payments {
		if stringish(payment["payment_status"]) != "SUCCESS" {
			continue
		}
		status.PaymentID = stringish(payment["cf_payment_id"])
		status.Payment = normalizeCashfreePayment(payment)
		break
	}
	return status, nil
}

func (p *CashfreeProvider) FetchPayment(ctx context.Context, orderID, paymentID string) map[string]interface{} {
	if strings.TrimSpace(orderID) == "" {
		return nil
	}
	payments, err := p.orderPayments(ctx, orderID)
	if err != nil {
		return nil
	}
	for _, payment := range payments {
		if paymentID == "" || stringish(payment["cf_payment_id"]) == paymentID {
			return normalizeCashfreePayment(payment)
		}
	}
	return nil
}

func (p *CashfreeProvider) Refund(ctx context.Context, input *RefundInput) (*RefundOutput, error) {
	if strings.TrimSpace(input.OrderID) == "" {
		return nil, &GatewayError{Gateway: entity.GatewayCashfree, Op: "refund", Err: errors.New("order id is required")}
	}

	var resp struct {
		RefundID     string `json:"refund_id"`
		RefundStatus string `json:"refund_status"`
	}
	payload := map[string]interface{}{
		"refund_amount": json.Number(input.Amount.StringFixed(2)),
		"refund_id":     input.RefundID,
	}
	if err := p.do(ctx, "refund", http.MethodPost, "/orders/"+url.PathEscape(input.OrderID)+"/refunds", payload, &resp); err != nil {
		return nil, err
	}
	return &RefundOutput{RefundID: resp.RefundID, Status: resp.RefundStatus}, nil
}

// VerifyWebhookSignature checks base64(HMAC-SHA256(secret, timestamp + body)).
func (p *CashfreeProvider) VerifyWebhookSignature(body []byte, headers http.Header) bool {
	timestamp := strings.TrimSpace(headers.Get(cashfreeTimestampHeader))
	signature := strings.TrimSpace(headers.Get(cashfreeSignatureHeader))
	if timestamp == "" || signature == "" || strings.TrimSpace(p.cfg.SecretKey) == "" {
		return false
	}
	candidate, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(p.cfg.SecretKey))
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write(body)
	return hmac.Equal(candidate, mac.Sum(nil))
}

func (p *CashfreeProvider) ParseWebhook(body []byte, headers http.Header) (*WebhookEvent, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var envelope struct {
		Type string `json:"type"`
		Data struct {
			Order   map[string]interface{} `json:"order"`
			Payment map[string]interface{} `json:"payment"`
		} `json:"data"`
	}
	if err := decoder.Decode(&envelope); err != nil {
		return nil, err
	}

	event := &WebhookEvent{
		EventID:   bodyDigest(append([]byte(headers.Get(cashfreeTimestampHeader)), body...)),
		EventType: envelope.Type,
	}
	if order := envelope.Data.Order; order != nil {
		event.OrderID = stringish(order["order_id"])
		event.Currency = stringish(order["order_currency"])
	}
	if payment := envelope.Data.Payment; payment != nil {
		event.PaymentID = stringish(payment["cf_payment_id"])
		if amount, ok := numberish(payment["payment_amount"]); ok {
			event.Amount = &amount
		}
		if c := stringish(payment["payment_currency"]); c != "" {
			event.Currency = c
		}
		event.Payment = normalizeCashfreePayment(payment)
	}

	switch envelope.Type {
	case "PAYMENT_SUCCESS_WEBHOOK":
		event.Outcome = WebhookOutcomeSucceeded
	case "PAYMENT_FAILED_WEBHOOK":
		event.Outcome = WebhookOutcomeAttemptFailed
	default:
		event.Outcome = WebhookOutcomeIgnored
	}
	return event, nil
}

func (p *CashfreeProvider) orderPayments(ctx context.Context, orderID string) ([]map[string]interface{}, error) {
	var payments []map[string]interface{}
	if err := p.do(ctx, "fetch payments", http.MethodGet, "/orders/"+url.PathEscape(orderID)+"/payments", nil, &payments); err != nil {
		return nil, err
	}
	return payments, nil
}

func (p *CashfreeProvider) do(ctx context.Context, op, method, path string, payload interface{}, out interface{}) error {
	if strings.TrimSpace(p.cfg.AppID) == "" || strings.TrimSpace(p.cfg.SecretKey) == "" {
		return &GatewayError{Gateway: entity.GatewayCashfree, Op: op, Err: errors.New("cashfree credentials are not configured")}
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return &GatewayError{Gateway: entity.GatewayCashfree, Op: op, Retryable: true, Err: err}
	}

	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("x-api-version", cashfreeAPIVersion)
	req.Header.Set("x-client-id", p.cfg.AppID)
	req.Header.Set("x-client-secret", p.cfg.SecretKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return &GatewayError{Gateway: entity.GatewayCashfree, Op: op, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &GatewayError{Gateway: entity.GatewayCashfree, Op: op, Retryable: true, Err: err}
	}
	if resp.StatusCode >= 400 {
		return &GatewayError{
			Gateway:   entity.GatewayCashfree,
			Op:        op,
			Retryable: resp.StatusCode >= 500,
			Err:       fmt.Errorf("status=%d body=%s", resp.StatusCode, string(body)),
		}
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	return decoder.Decode(out)
}

// normalizeCashfreePayment maps a Cashfree payment object onto the field
// names fee reconciliation reads. Cashfree reports no per-payment fees.
func normalizeCashfreePayment(payment map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{
		"id":       stringish(payment["cf_payment_id"]),
		"status":   stringish(payment["payment_status"]),
		"currency": stringish(payment["payment_currency"]),
		"method":   cashfreeMethod(stringish(payment["payment_group"])),
	}
	if amount, ok := numberish(payment["payment_amount"]); ok {
		out["amount"] = amount.Mul(hundred).IntPart()
	}

	method, _ := payment["payment_method"].(map[string]interface{})
	if upi := nestedMap(method, "upi"); upi != nil {
		out["vpa"] = stringish(upi["upi_id"])
	}
	if card := nestedMap(method, "card"); card != nil {
		number := stringish(card["card_number"])
		last4 := number
		if len(number) > 4 {
			last4 = number[len(number)-4:]
		}
		out["card"] = map[string]interface{}{
			"network": stringish(card["card_network"]),
			"last4":   last4,
		}
		out["international"] = strings.TrimSpace(stringish(card["card_country"])) != "" &&
			!strings.EqualFold(stringish(card["card_country"]), "IN")
	}
	if nb := nestedMap(method, "netbanking"); nb != nil {
		out["bank"] = stringish(nb["netbanking_bank_name"])
	}
	if app := nestedMap(method, "app"); app != nil {
		out["wallet"] = stringish(app["provider"])
	}

	if details, ok := payment["error_details"].(map[string]interface{}); ok {
		out["error_code"] = stringish(details["error_code"])
		out["error_description"] = stringish(details["error_description"])
		out["error_source"] = stringish(details["error_source"])
		out["error_reason"] = stringish(details["error_reason"])
	}
	return out
}

func cashfreeMethod(group string) string {
	switch strings.ToLower(group) {
	case "upi":
		return "upi"
	case "credit_card", "debit_card", "prepaid_card", "card":
		return "card"
	case "net_banking", "netbanking":
		return "netbanking"
	case "wallet", "app":
		return "wallet"
	case "cardless_emi", "credit_card_emi", "debit_card_emi", "emi", "pay_later":
		return "emi"
	}
	return group
}
