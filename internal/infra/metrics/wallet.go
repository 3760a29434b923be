package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		walletOpsTotal,
		creditsAppliedTotal,
		reconcileTotal,
		reconcileDuration,
		notificationsTotal,
	)
}

var (
	walletOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_operations_total",
			Help: "Wallet mutations by kind and result.",
		},
		[]string{"op", "result"}, // op: topup|deduct|admin_credit|signup_bonus
	)

	creditsAppliedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wallet_credits_applied_total",
			Help: "Credits granted from paid top-ups.",
		},
	)

	reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconcile_total",
			Help: "Reconciliation runs by outcome.",
		},
		[]string{"source", "outcome"}, // source: webhook|poll|sweep; outcome: credited|updated|unchanged|error
	)

	reconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_reconcile_duration_seconds",
			Help:    "Time spent reconciling a single payment.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"source"},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Post-commit notifications by channel and delivery status.",
		},
		[]string{"channel", "status"}, // channel: balance|receipt; status: sent|error|dropped
	)
)

func IncWalletOp(op, result string) {
	walletOpsTotal.WithLabelValues(norm(op), norm(result)).Inc()
}

func AddCreditsApplied(credits int64) {
	creditsAppliedTotal.Add(float64(credits))
}

func ObserveReconcile(source, outcome string, d time.Duration) {
	reconcileTotal.WithLabelValues(norm(source), norm(outcome)).Inc()
	reconcileDuration.WithLabelValues(norm(source)).Observe(d.Seconds())
}

func IncNotification(channel, status string) {
	notificationsTotal.WithLabelValues(norm(channel), norm(status)).Inc()
}
