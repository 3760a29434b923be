package metrics

import (
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		buildInfo,
		dbPoolStats,
		lockContentionTotal,
	)
}

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "credits_build_info",
			Help: "A constant metric with labels for version, commit and payment provider.",
		},
		[]string{"version", "commit", "provider"},
	)

	dbPoolStats = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_stats",
			Help: "Current state of the database connection pool.",
		},
		[]string{"state"}, // 'total', 'idle', 'in_use'
	)

	lockContentionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_lock_contention_total",
			Help: "Lock acquisitions that gave up because another holder was active.",
		},
		[]string{"scope"},
	)
)

func SetBuildInfo(version, commit, provider string) {
	buildInfo.WithLabelValues(version, commit, norm(provider)).Set(1)
}

func ObserveDBPool(stat *pgxpool.Stat) {
	if stat == nil {
		return
	}
	dbPoolStats.WithLabelValues("total").Set(float64(stat.TotalConns()))
	dbPoolStats.WithLabelValues("idle").Set(float64(stat.IdleConns()))
	dbPoolStats.WithLabelValues("in_use").Set(float64(stat.AcquiredConns()))
}

func IncLockContention(scope string) {
	lockContentionTotal.WithLabelValues(norm(scope)).Inc()
}
