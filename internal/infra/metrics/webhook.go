package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		WebhookRequests,
		WebhookDuration,
	)
}

var (
	// Count of webhook deliveries grouped by result and bounded reason.
	// result: ok|fail
	// reason: credited|status_changed|unchanged on ok; missing_id|not_found|gateway|storage|busy|unknown on fail
	WebhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_requests_total",
			Help: "Count of /payments/webhook calls by result and reason.",
		},
		[]string{"result", "reason"},
	)

	// Latency of the webhook handler grouped by result.
	WebhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_webhook_duration_seconds",
			Help:    "Duration of /payments/webhook handler in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)
)
