package observability

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	kmlDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kml_documents_total",
			Help: "KML documents generated by kind.",
		},
		[]string{"kind"},
	)

	tileFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tile_fetch_total",
			Help: "Print tile fetches by outcome (ok, error, skipped).",
		},
		[]string{"outcome"},
	)

	tileFetchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tile_fetch_duration_seconds",
			Help:    "Duration of single tile fetches including decode.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)

	printDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "print_duration_seconds",
			Help:    "End to end duration of print jobs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		},
		[]string{"format"},
	)

	docCacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doc_cache_results_total",
			Help: "Rendered document cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	cacheOpTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Redis operations by op and result.",
		},
		[]string{"op", "result"},
	)

	redisOpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Duration of redis operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal,
		httpRequestDurationSeconds,
		upstreamLatencySeconds,
		kmlDocumentsTotal,
		tileFetchTotal,
		tileFetchDurationSeconds,
		printDurationSeconds,
		docCacheResults,
		cacheOpTotal,
		redisOpDurationSeconds,
	}
}

// Init registers the service collectors on reg. Observations made before or
// without Init are kept in memory and simply not exported.
func Init(reg prometheus.Registerer, enabled bool) {
	if !enabled || reg == nil {
		return
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(err)
			}
		}
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

func IncKMLDocument(kind string) {
	kmlDocumentsTotal.WithLabelValues(kind).Inc()
}

func ObserveTileFetch(outcome string, durationSeconds float64) {
	tileFetchTotal.WithLabelValues(outcome).Inc()
	if outcome != "skipped" {
		tileFetchDurationSeconds.Observe(durationSeconds)
	}
}

func ObservePrint(format string, durationSeconds float64) {
	printDurationSeconds.WithLabelValues(format).Observe(durationSeconds)
}

func IncDocCache(outcome string) {
	docCacheResults.WithLabelValues(outcome).Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	cacheOpTotal.WithLabelValues(op, result).Inc()
	redisOpDurationSeconds.WithLabelValues(op).Observe(durationSeconds)
}
