package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DonationStatusPending  = "pending"
	DonationStatusSuccess  = "success"
	DonationStatusFailed   = "failed"
	DonationStatusRefunded = "refunded"
)

const (
	DonationTypeOneTime = "one_time"
	DonationTypeMonthly = "monthly"
)

const (
	GatewayRazorpay = "razorpay"
	GatewayCashfree = "cashfree"
)

const (
	CauseGausewa = "gausewa"
	CauseMedical = "medical"
	CauseFeed    = "feed"
	CauseRescue  = "rescue"
	CauseGeneral = "general"
)

const (
	CertificateDeliveryNone    = "none"
	CertificateDeliveryPending = "pending"
	CertificateDeliverySent    = "sent"
	CertificateDeliveryFailed  = "failed"
)

const DefaultCurrency = "INR"

// Donor is the snapshot taken at donation time. It is never refreshed from a
// user profile afterwards.
type Donor struct {
	Name       string
	Email      string
	Phone      string
	PAN        *string
	FatherName *string
	Address    *string
	City       *string
	State      *string
	Pincode    *string
	Country    string
	OnBehalfOf bool
}

type Donation struct {
	ID uint64

	Donor Donor

	Amount   decimal.Decimal
	Currency string
	Cause    string
	Type     string
	Gateway  string
	Status   string

	GatewayOrderID   *string
	GatewayPaymentID *string
	GatewaySignature *string
	SubscriptionID   *string

	CertificateSent      bool
	CertificateSentAt    *time.Time
	CertificatePath      *string
	CertificateStatus    string
	CertificateAttempts  int32
	CertificateNextAt    *time.Time
	CertificateLastError *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TransactionReference is the identifier printed on certificates and emails.
func (d *Donation) TransactionReference() string {
	if d.GatewayPaymentID != nil && *d.GatewayPaymentID != "" {
		return *d.GatewayPaymentID
	}
	if d.GatewayOrderID != nil {
		return *d.GatewayOrderID
	}
	return ""
}

// FormatAmount rounds amount to places and separates the integer part into
// groups of three with commas.
func FormatAmount(amount decimal.Decimal, places int32) string {
	fixed := amount.StringFixed(places)
	intPart, frac, _ := strings.Cut(fixed, ".")
	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

func IsValidCause(cause string) bool {
	switch cause {
	case CauseGausewa, CauseMedical, CauseFeed, CauseRescue, CauseGeneral:
		return true
	default:
		return false
	}
}

func IsValidDonationType(donationType string) bool {
	return donationType == DonationTypeOneTime || donationType == DonationTypeMonthly
}

func IsValidGateway(gateway string) bool {
	return gateway == GatewayRazorpay || gateway == GatewayCashfree
}

func IsValidDonationStatus(status string) bool {
	switch status {
	case DonationStatusPending, DonationStatusSuccess, DonationStatusFailed, DonationStatusRefunded:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a donation may move from one status to another.
// pending -> success | failed, success -> refunded. Nothing else.
func CanTransition(from, to string) bool {
	switch from {
	case DonationStatusPending:
		return to == DonationStatusSuccess || to == DonationStatusFailed
	case DonationStatusSuccess:
		return to == DonationStatusRefunded
	default:
		return false
	}
}
