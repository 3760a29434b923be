package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		gatewayCallsTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment status changes (created/paid/failed/expired/canceled).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of paid top-ups, labeled by currency.",
		},
		[]string{"currency"},
	)

	gatewayCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_gateway_calls_total",
			Help: "Calls to the hosted payment provider by operation and result.",
		},
		[]string{"provider", "op", "result"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount decimal.Decimal) {
	f, _ := amount.Float64()
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(f)
}

func IncGatewayCall(provider, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	gatewayCallsTotal.WithLabelValues(norm(provider), norm(op), result).Inc()
}
