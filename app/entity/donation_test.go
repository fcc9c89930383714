package entity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCanTransition(t *testing.T) {
	statuses := []string{DonationStatusPending, DonationStatusSuccess, DonationStatusFailed, DonationStatusRefunded}
	allowed := map[[2]string]bool{
		{DonationStatusPending, DonationStatusSuccess}:  true,
		{DonationStatusPending, DonationStatusFailed}:   true,
		{DonationStatusSuccess, DonationStatusRefunded}: true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			got := CanTransition(from, to)
			if got != allowed[[2]string{from, to}] {
				t.Fatalf("expected CanTransition(%s, %s)=%v, got %v", from, to, allowed[[2]string{from, to}], got)
			}
		}
	}
}

func TestTransactionReferencePrefersPaymentID(t *testing.T) {
	orderID := "order_1"
	paymentID := "pay_1"
	d := &Donation{GatewayOrderID: &orderID}
	if d.TransactionReference() != "order_1" {
		t.Fatalf("expected order id fallback, got %q", d.TransactionReference())
	}
	d.GatewayPaymentID = &paymentID
	if d.TransactionReference() != "pay_1" {
		t.Fatalf("expected payment id, got %q", d.TransactionReference())
	}
}

func TestTemplateUpdateApplyOnlySetFields(t *testing.T) {
	tpl := NewDefaultCertificateTemplate(time.Now().UTC())
	ngoName := "Test NGO"
	color := "#000000"

	changed := TemplateUpdate{NGOName: &ngoName, PrimaryColor: &color}.Apply(tpl)
	if !changed {
		t.Fatal("expected template to change")
	}
	if tpl.NGOName == nil || *tpl.NGOName != "Test NGO" {
		t.Fatalf("expected ngo name to be set, got %v", tpl.NGOName)
	}
	if tpl.PrimaryColor != "#000000" {
		t.Fatalf("expected primary color override, got %s", tpl.PrimaryColor)
	}
	if tpl.SecondaryColor != DefaultSecondaryColor {
		t.Fatalf("expected secondary color untouched, got %s", tpl.SecondaryColor)
	}
	if tpl.HeaderText != DefaultHeaderText {
		t.Fatalf("expected header untouched, got %s", tpl.HeaderText)
	}

	if (TemplateUpdate{NGOName: &ngoName}).Apply(tpl) {
		t.Fatal("expected no change when value is identical")
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		in     string
		places int32
		want   string
	}{
		{"1", 2, "1.00"},
		{"999.5", 2, "999.50"},
		{"1000", 2, "1,000.00"},
		{"1234567.89", 2, "1,234,567.89"},
		{"1234567.49", 0, "1,234,567"},
		{"1500.5", 0, "1,501"},
		{"-2500", 2, "-2,500.00"},
	}
	for _, tc := range cases {
		if got := FormatAmount(decimal.RequireFromString(tc.in), tc.places); got != tc.want {
			t.Fatalf("FormatAmount(%s, %d): expected %s, got %s", tc.in, tc.places, tc.want, got)
		}
	}
}
