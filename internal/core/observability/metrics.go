package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	storeOpTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_op_total",
			Help: "Elevation store operations by outcome.",
		},
		[]string{"op", "outcome"},
	)

	storeOpDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_op_duration_seconds",
			Help:    "Duration of elevation store operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"op"},
	)

	elevationCells = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elevation_cells_total",
			Help: "Requested cells by lookup outcome.",
		},
		[]string{"outcome"},
	)

	rejectedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rejected_requests_total",
			Help: "Requests rejected before lookup, by reason.",
		},
		[]string{"reason"},
	)

	populationRequested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "population_requests_total",
			Help: "Cells forwarded to the population pipeline.",
		},
	)

	populationSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "population_suppressed_total",
			Help: "Cells skipped because a population request was already pending.",
		},
	)

	dedupEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dedup_pending_entries",
			Help: "Cells currently tracked by the population dedup cache.",
		},
	)

	memcacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memcache_results_total",
			Help: "In-process cache results by outcome.",
		},
		[]string{"outcome"},
	)

	workerEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "population_worker_events_total",
			Help: "Populate requests consumed by the worker, by outcome.",
		},
		[]string{"outcome"},
	)

	populatedCells = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "populated_cells_total",
			Help: "Cells written to the elevation store by the worker.",
		},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveStoreOp(op string, err error, durationSeconds float64) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	storeOpTotal.WithLabelValues(op, outcome).Inc()
	storeOpDurationSeconds.WithLabelValues(op).Observe(durationSeconds)
}

func AddCellsAvailable(n int) {
	if n > 0 {
		elevationCells.WithLabelValues("available").Add(float64(n))
	}
}

func AddCellsUnavailable(n int) {
	if n > 0 {
		elevationCells.WithLabelValues("unavailable").Add(float64(n))
	}
}

func IncRejected(reason string) {
	rejectedRequests.WithLabelValues(reason).Inc()
}

func AddPopulationRequested(n int) {
	if n > 0 {
		populationRequested.Add(float64(n))
	}
}

func AddPopulationSuppressed(n int) {
	if n > 0 {
		populationSuppressed.Add(float64(n))
	}
}

func SetDedupEntries(n int) {
	dedupEntries.Set(float64(n))
}

func AddMemcacheHits(n int) {
	if n > 0 {
		memcacheResults.WithLabelValues("hit").Add(float64(n))
	}
}

func AddMemcacheMisses(n int) {
	if n > 0 {
		memcacheResults.WithLabelValues("miss").Add(float64(n))
	}
}

func IncWorkerEvent(outcome string) {
	workerEvents.WithLabelValues(outcome).Inc()
}

func AddCellsPopulated(n int) {
	if n > 0 {
		populatedCells.Add(float64(n))
	}
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
