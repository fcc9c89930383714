package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()
	r.DonationTransition("razorpay", "success", "webhook")
	r.DonationTransition("razorpay", "success", "webhook")
	r.AmountMismatch("cashfree")
	r.LatePayment("razorpay")

	if got := testutil.ToFloat64(r.transitions.WithLabelValues("razorpay", "success", "webhook")); got != 2 {
		t.Fatalf("expected 2 transitions, got %v", got)
	}
	if got := testutil.ToFloat64(r.mismatches.WithLabelValues("cashfree")); got != 1 {
		t.Fatalf("expected 1 mismatch, got %v", got)
	}
	if got := testutil.ToFloat64(r.latePayments.WithLabelValues("razorpay")); got != 1 {
		t.Fatalf("expected 1 late payment, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRecorder()
	r.WebhookReceived("razorpay", "processed")
	r.CertificateDelivery("sent")
	r.GatewayError("cashfree", "refund")
	r.JobRun("reconcile", "completed")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, name := range []string{
		"donations_webhooks_total",
		"donations_certificate_deliveries_total",
		"donations_gateway_errors_total",
		"donations_job_runs_total",
	} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("expected %s in metrics output", name)
		}
	}
}
