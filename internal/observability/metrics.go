package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "banledger_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "banledger_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// BanOperationsTotal counts lifecycle operations by kind and outcome code.
	BanOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "banledger_ban_operations_total",
		Help: "Total ban lifecycle operations by operation and outcome",
	}, []string{"operation", "outcome"})

	// BanRowsDisabledTotal counts rows flipped to manually disabled.
	BanRowsDisabledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "banledger_ban_rows_disabled_total",
		Help: "Total ban rows manually disabled by unban",
	})

	// BanListingPages records how many pages each listing view produced.
	BanListingPages = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "banledger_ban_listing_pages",
		Help:    "Number of pages produced per ban listing",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
	}, []string{"view"})

	// ProfileLookupsTotal counts profile resolutions that reached the store.
	ProfileLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "banledger_profile_lookups_total",
		Help: "Profile lookups by result (hit = memoized, miss = store call)",
	}, []string{"result"})
)

// DatabaseMetrics records query latency for repository calls.
type DatabaseMetrics struct{}

// NewDatabaseMetrics returns a new DatabaseMetrics instance.
func NewDatabaseMetrics() *DatabaseMetrics {
	return &DatabaseMetrics{}
}

// ObserveQuery records the latency of a database query.
func (m *DatabaseMetrics) ObserveQuery(operation, table string, start time.Time) {
	latency := time.Since(start).Seconds()
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(latency)
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *DatabaseMetrics) TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		m.ObserveQuery(operation, table, start)
	}
}

// RecordBanOperation increments the lifecycle counter.
func RecordBanOperation(operation, outcome string) {
	BanOperationsTotal.WithLabelValues(operation, outcome).Inc()
}
