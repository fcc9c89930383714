package service

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-donations/app/entity"
)

const rawResponseLimit = 5000

var paiseDivisor = decimal.NewFromInt(100)

// FeeBreakdown is the reconciled view of one gateway payment object.
type FeeBreakdown struct {
	Fee            *decimal.Decimal
	Tax            *decimal.Decimal
	TotalDeduction *decimal.Decimal
	Net            *decimal.Decimal
	NeedsReview    bool

	Currency      string
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

	RawResponse *string
}

// ReconcileFees converts a raw payment object into a fee breakdown. Fee and
// tax arrive in paise and are rounded half-up to two decimals separately.
// A missing fee leaves every amount nil. A negative net is kept and flagged.
func ReconcileFees(raw map[string]interface{}, gross decimal.Decimal, currency string) *FeeBreakdown {
	out := &FeeBreakdown{Currency: currency}
	if raw == nil {
		return out
	}

	if fee, ok := paiseValue(raw["fee"]); ok {
		tax, hasTax := paiseValue(raw["tax"])
		if !hasTax {
			tax = decimal.Zero
		}
		total := fee.Add(tax)
		net := gross.Sub(total)

		out.Fee = &fee
		out.Tax = &tax
		out.TotalDeduction = &total
		out.Net = &net
		out.NeedsReview = net.IsNegative()
	}

	if c := rawString(raw, "currency"); c != nil {
		out.Currency = strings.ToUpper(*c)
	}
	method := NormalizePaymentMethod(stringValue(raw["method"]))
	out.PaymentMethod = &method
	out.Bank = rawString(raw, "bank")
	out.UPIVPA = rawString(raw, "vpa")
	out.Wallet = rawString(raw, "wallet")
	if card, ok := raw["card"].(map[string]interface{}); ok {
		out.CardNetwork = rawString(card, "network")
		out.CardLast4 = rawString(card, "last4")
	}
	if international, ok := raw["international"].(bool); ok {
		out.International = international
	}

	out.ErrorCode = rawString(raw, "error_code")
	out.ErrorDescription = rawString(raw, "error_description")
	out.ErrorSource = rawString(raw, "error_source")
	out.ErrorStep = rawString(raw, "error_step")
	out.ErrorReason = rawString(raw, "error_reason")

	if encoded, err := json.Marshal(raw); err == nil {
		capped := capUTF8(string(encoded), rawResponseLimit)
		out.RawResponse = &capped
	}
	return out
}

// NormalizePaymentMethod maps a gateway method string onto the closed set.
func NormalizePaymentMethod(method string) string {
	switch m := strings.ToLower(strings.TrimSpace(method)); m {
	case entity.PaymentMethodUPI, entity.PaymentMethodCard, entity.PaymentMethodNetBanking,
		entity.PaymentMethodWallet, entity.PaymentMethodEMI:
		return m
	}
	return entity.PaymentMethodOther
}

func (b *FeeBreakdown) applyTo(txn *entity.PaymentTransaction) {
	txn.GatewayFee = b.Fee
	txn.GatewayTax = b.Tax
	txn.GatewayTotalDeduction = b.TotalDeduction
	txn.NetReceivable = b.Net
	txn.NeedsReview = txn.NeedsReview || b.NeedsReview
	if b.Currency != "" {
		txn.Currency = b.Currency
	}
	txn.PaymentMethod = b.PaymentMethod
	txn.Bank = b.Bank
	txn.CardNetwork = b.CardNetwork
	txn.CardLast4 = b.CardLast4
	txn.UPIVPA = b.UPIVPA
	txn.Wallet = b.Wallet
	txn.International = b.International
	txn.RawResponse = b.RawResponse
}

func paiseValue(v interface{}) (decimal.Decimal, bool) {
	var minor decimal.Decimal
	switch t := v.(type) {
	case float64:
		minor = decimal.NewFromFloat(t)
	case int:
		minor = decimal.NewFromInt(int64(t))
	case int64:
		minor = decimal.NewFromInt(t)
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return decimal.Zero, false
		}
		minor = d
	default:
		return decimal.Zero, false
	}
	return minor.Div(paiseDivisor).Round(2), true
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func rawString(m map[string]interface{}, key string) *string {
	s := stringValue(m[key])
	if s == "" {
		return nil
	}
	return &s
}

func capUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
