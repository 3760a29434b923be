package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(adminRequestsTotal) }

var adminRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "admin_requests_total",
		Help: "Tracks attempts to use admin endpoints.",
	},
	[]string{"action", "status"}, // status: 'authorized', 'unauthorized'
)

func IncAdminRequest(action, status string) {
	adminRequestsTotal.WithLabelValues(norm(action), norm(status)).Inc()
}
