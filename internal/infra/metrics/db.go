package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(pgPoolConns, pgPoolEmptyAcquires) }

var (
	pgPoolConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pg_pool_connections",
			Help: "Postgres pool connections by state.",
		},
		[]string{"state"}, // max, total, idle, acquired
	)

	pgPoolEmptyAcquires = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pg_pool_empty_acquires",
			Help: "Cumulative acquires that had to wait for a connection, as reported by the pool.",
		},
	)
)

// SetPGPoolStats mirrors a pgxpool.Stat snapshot.
func SetPGPoolStats(max, total, idle, acquired int32, emptyAcquires int64) {
	pgPoolConns.WithLabelValues("max").Set(float64(max))
	pgPoolConns.WithLabelValues("total").Set(float64(total))
	pgPoolConns.WithLabelValues("idle").Set(float64(idle))
	pgPoolConns.WithLabelValues("acquired").Set(float64(acquired))
	pgPoolEmptyAcquires.Set(float64(emptyAcquires))
}
