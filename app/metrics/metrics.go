package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the service's Prometheus collectors.
type Recorder struct {
	registry *prometheus.Registry

	transitions  *prometheus.CounterVec
	webhooks     *prometheus.CounterVec
	mismatches   *prometheus.CounterVec
	latePayments *prometheus.CounterVec
	certificates *prometheus.CounterVec
	gatewayErrs  *prometheus.CounterVec
	jobRuns      *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "donations",
			Name:      "status_transitions_total",
			Help:      "Donation status transitions by gateway, new status and source.",
		}, []string{"gateway", "status", "source"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "donations",
			Name:      "webhooks_total",
			Help:      "Gateway webhook deliveries by result.",
		}, []string{"gateway", "result"}),
		mismatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "donations",
			Name:      "amount_mismatches_total",
			Help:      "Webhook amounts that did not match the donation.",
		}, []string{"gateway"}),
		latePayments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "donations",
			Name:      "late_payments_total",
			Help:      "Captures reported for donations that had already failed or been refunded.",
		}, []string{"gateway"}),
		certificates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "donations",
			Name:      "certificate_deliveries_total",
			Help:      "Certificate delivery attempts by result.",
		}, []string{"result"}),
		gatewayErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "donations",
			Name:      "gateway_errors_total",
			Help:      "Gateway API failures by operation.",
		}, []string{"gateway", "op"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "donations",
			Name:      "job_runs_total",
			Help:      "Background job runs by job and result.",
		}, []string{"job", "result"}),
	}
	r.registry.MustRegister(
		r.transitions,
		r.webhooks,
		r.mismatches,
		r.latePayments,
		r.certificates,
		r.gatewayErrs,
		r.jobRuns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) DonationTransition(gateway, status, source string) {
	r.transitions.WithLabelValues(gateway, status, source).Inc()
}

func (r *Recorder) WebhookReceived(gateway, result string) {
	r.webhooks.WithLabelValues(gateway, result).Inc()
}

func (r *Recorder) AmountMismatch(gateway string) {
	r.mismatches.WithLabelValues(gateway).Inc()
}

func (r *Recorder) LatePayment(gateway string) {
	r.latePayments.WithLabelValues(gateway).Inc()
}

func (r *Recorder) CertificateDelivery(result string) {
	r.certificates.WithLabelValues(result).Inc()
}

func (r *Recorder) GatewayError(gateway, op string) {
	r.gatewayErrs.WithLabelValues(gateway, op).Inc()
}

func (r *Recorder) JobRun(job, result string) {
	r.jobRuns.WithLabelValues(job, result).Inc()
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
