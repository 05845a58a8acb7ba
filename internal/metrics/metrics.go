package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mse"

var (
	// FetchRequestsTotal counts source requests by kind (listing, history) and outcome.
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "requests_total",
			Help:      "Requests sent to the exchange by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// FetchRetriesTotal counts retry attempts by kind.
	FetchRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "retries_total",
			Help:      "Retried requests by kind",
		},
		[]string{"kind"},
	)

	// FetchDurationSeconds observes single-attempt latency.
	FetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "duration_seconds",
			Help:      "Latency of a single request attempt",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"kind"},
	)

	// RowsTotal counts normalized rows by result (accepted or a skip reason).
	RowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalize",
			Name:      "rows_total",
			Help:      "Table rows by normalization result",
		},
		[]string{"result"},
	)

	// RecordsPersistedTotal counts records committed to the database.
	RecordsPersistedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "records_persisted_total",
			Help:      "Records committed through the upsert procedure",
		},
	)

	// BatchesTotal counts transactions by outcome (committed, rolled_back).
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "batches_total",
			Help:      "Batch transactions by outcome",
		},
		[]string{"outcome"},
	)

	// BatchDurationSeconds observes transaction latency.
	BatchDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "batch_duration_seconds",
			Help:      "Time to execute and commit one batch",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
	)

	// SecuritiesTotal counts per-security task outcomes (synced, up_to_date, failed).
	SecuritiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "securities_total",
			Help:      "Per-security task outcomes",
		},
		[]string{"outcome"},
	)

	// InFlightTasks tracks running per-security tasks.
	InFlightTasks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "in_flight_tasks",
			Help:      "Per-security tasks currently running",
		},
	)

	// RunsTotal counts runs by outcome (completed, failed).
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "runs_total",
			Help:      "Scrape runs by outcome",
		},
		[]string{"outcome"},
	)

	// RunDurationSeconds observes wall-clock run time.
	RunDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of a full scrape run",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68min
		},
	)

	// LastRunTimestamp is the unix time of the last completed run.
	LastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed run",
		},
	)
)

// Handler returns the Prometheus exposition handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
