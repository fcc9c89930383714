package types

import "encoding/json"

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type Donation struct {
	Id                  uint64 `json:"id"`
	DonorName           string `json:"donor_name"`
	DonorEmail          string `json:"donor_email"`
	DonorPhone          string `json:"donor_phone,omitempty"`
	DonorPan            string `json:"donor_pan,omitempty"`
	DonorCity           string `json:"donor_city,omitempty"`
	DonorState          string `json:"donor_state,omitempty"`
	DonorCountry        string `json:"donor_country,omitempty"`
	OnBehalfOf          bool   `json:"on_behalf_of"`
	Amount              string `json:"amount"`
	Currency            string `json:"currency"`
	Cause               string `json:"cause"`
	DonationType        string `json:"donation_type"`
	Gateway             string `json:"gateway"`
	Status              string `json:"status"`
	GatewayOrderId      string `json:"gateway_order_id,omitempty"`
	GatewayPaymentId    string `json:"gateway_payment_id,omitempty"`
	SubscriptionId      string `json:"subscription_id,omitempty"`
	TransactionId       string `json:"transaction_id,omitempty"`
	CertificateSent     bool   `json:"certificate_sent"`
	CertificateStatus   string `json:"certificate_status"`
	CertificateAttempts int32  `json:"certificate_attempts"`
	CertificateSentAt   string `json:"certificate_sent_at,omitempty"`
	CertificateError    string `json:"certificate_error,omitempty"`
	CreatedAt           string `json:"created_at"`
	UpdatedAt           string `json:"updated_at"`
}

type Transaction struct {
	Id                    uint64 `json:"id"`
	DonationId            uint64 `json:"donation_id"`
	Gateway               string `json:"gateway"`
	GatewayOrderId        string `json:"gateway_order_id,omitempty"`
	GatewayPaymentId      string `json:"gateway_payment_id,omitempty"`
	SubscriptionId        string `json:"subscription_id,omitempty"`
	Status                string `json:"status"`
	GrossAmount           string `json:"gross_amount"`
	GatewayFee            string `json:"gateway_fee,omitempty"`
	GatewayTax            string `json:"gateway_tax,omitempty"`
	GatewayTotalDeduction string `json:"gateway_total_deduction,omitempty"`
	NetReceivable         string `json:"net_receivable,omitempty"`
	Currency              string `json:"currency"`
	PaymentMethod         string `json:"payment_method,omitempty"`
	Bank                  string `json:"bank,omitempty"`
	CardNetwork           string `json:"card_network,omitempty"`
	CardLast4             string `json:"card_last4,omitempty"`
	UpiVpa                string `json:"upi_vpa,omitempty"`
	Wallet                string `json:"wallet,omitempty"`
	International         bool   `json:"international"`
	ErrorCode             string `json:"error_code,omitempty"`
	ErrorDescription      string `json:"error_description,omitempty"`
	NeedsReview           bool   `json:"needs_review"`
	InitiatedAt           string `json:"initiated_at"`
	CapturedAt            string `json:"captured_at,omitempty"`
	FailedAt              string `json:"failed_at,omitempty"`
}

type CreateOrderResponse struct {
	DonationId       uint64 `json:"donation_id"`
	OrderId          string `json:"order_id,omitempty"`
	SubscriptionId   string `json:"subscription_id,omitempty"`
	ShortUrl         string `json:"short_url,omitempty"`
	PaymentSessionId string `json:"payment_session_id,omitempty"`
	KeyId            string `json:"key_id,omitempty"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	Gateway          string `json:"gateway"`
}

type VerifyDonationResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	DonationId    uint64 `json:"donation_id"`
	TransactionId string `json:"transaction_id,omitempty"`
	GrossAmount   string `json:"gross_amount"`
	GatewayFee    string `json:"gateway_fee,omitempty"`
	GatewayTax    string `json:"gateway_tax,omitempty"`
	NetReceivable string `json:"net_receivable,omitempty"`
	Certificate   string `json:"certificate,omitempty"`
}

type WebhookResponse struct {
	Status    string `json:"status"`
	Result    string `json:"result"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

type DonationEnvelopeResponse struct {
	Donation     *Donation      `json:"donation"`
	Transactions []*Transaction `json:"transactions,omitempty"`
}

type ListDonationsResponse struct {
	Total     int64       `json:"total"`
	Page      int32       `json:"page"`
	Limit     int32       `json:"limit"`
	Donations []*Donation `json:"donations"`
}

type ResendCertificateResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type CertificateTemplate struct {
	Id              uint64 `json:"id"`
	Name            string `json:"name"`
	IsActive        bool   `json:"is_active"`
	LogoPath        string `json:"logo_path,omitempty"`
	SignaturePath   string `json:"signature_path,omitempty"`
	PrimaryColor    string `json:"primary_color"`
	SecondaryColor  string `json:"secondary_color"`
	FontFamily      string `json:"font_family"`
	NGOName         string `json:"ngo_name,omitempty"`
	NGOPan          string `json:"ngo_pan,omitempty"`
	NGO80GReg       string `json:"ngo_80g_reg,omitempty"`
	NGO12AReg       string `json:"ngo_12a_reg,omitempty"`
	NGOAddress      string `json:"ngo_address,omitempty"`
	NGOPhone        string `json:"ngo_phone,omitempty"`
	NGOEmail        string `json:"ngo_email,omitempty"`
	HeaderText      string `json:"header_text"`
	FooterText      string `json:"footer_text"`
	ThankYouMessage string `json:"thank_you_message"`
	UpdatedAt       string `json:"updated_at"`
}

type AstrologyResponse struct {
	Source string          `json:"source"`
	Data   json.RawMessage `json:"data"`
}
