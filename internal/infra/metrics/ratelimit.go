package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(rateLimitTotal) }

var rateLimitTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_limit_decisions_total",
		Help: "Rate limiter decisions per scope.",
	},
	[]string{"scope", "result"}, // result: 'allowed', 'blocked', 'error'
)

func IncRateLimit(scope, result string) {
	rateLimitTotal.WithLabelValues(norm(scope), norm(result)).Inc()
}
