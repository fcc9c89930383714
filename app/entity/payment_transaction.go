package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionStatusInitiated         = "initiated"
	TransactionStatusAuthorized        = "authorized"
	TransactionStatusCaptured          = "captured"
	TransactionStatusFailed            = "failed"
	TransactionStatusRefunded          = "refunded"
	TransactionStatusPartiallyRefunded = "partially_refunded"
)

const (
	PaymentMethodUPI        = "upi"
	PaymentMethodCard       = "card"
	PaymentMethodNetBanking = "netbanking"
	PaymentMethodWallet     = "wallet"
	PaymentMethodEMI        = "emi"
	PaymentMethodOther      = "other"
)

// PaymentTransaction is one append-only row per payment attempt outcome.
// Breakdown amounts are nil when the gateway did not report fees.
type PaymentTransaction struct {
	ID uint64

	DonationID uint64

	Gateway          string
	GatewayOrderID   *string
	GatewayPaymentID *string
	GatewaySignature *string
	SubscriptionID   *string

	GrossAmount           decimal.Decimal
	GatewayFee            *decimal.Decimal
	GatewayTax            *decimal.Decimal
	GatewayTotalDeduction *decimal.Decimal
	NetReceivable         *decimal.Decimal
	Currency              string

	Status        string
	PaymentMethod *string
	Bank          *string
	CardNetwork   *string
	CardLast4     *string
	UPIVPA        *string
	Wallet        *string
	International bool

	ErrorCode        *string
	ErrorDescription *string
	ErrorSource      *string
	ErrorStep        *string
	ErrorReason      *string

	NeedsReview bool
	RawResponse *string

	InitiatedAt time.Time
	CapturedAt  *time.Time
	FailedAt    *time.Time
}
