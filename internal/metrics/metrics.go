package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests by method, route and status",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method and route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// Translation engine metrics. These mirror the in-process stats counters so they
// survive in Prometheus after a restart resets the counters.
var (
	TranslationRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "translation_requests_total",
		Help: "Translated texts by how they were resolved (cache, api, fallback, identity)",
	}, []string{"source"})

	TranslationCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "translation_cache_hits_total",
		Help: "Translation lookups served from cache",
	})

	TranslationCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "translation_cache_misses_total",
		Help: "Translation lookups that missed every cache tier",
	})

	TranslationAPICalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "translation_api_calls_total",
		Help: "Calls made to the external translation backend",
	})

	TranslationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "translation_errors_total",
		Help: "Translation failures by type",
	}, []string{"type"})

	TranslationAPILatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "translation_api_latency_seconds",
		Help:    "Latency of external translation backend calls",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	TranslationBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "translation_batch_size",
		Help:    "Number of texts sent in one backend batch call",
		Buckets: []float64{1, 2, 5, 10, 20, 50},
	})
)

// Rate limiter metrics
var (
	RateLimiterQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "translation_rate_limiter_queue_depth",
		Help: "Pending operations per rate limiter endpoint key",
	}, []string{"endpoint"})

	RateLimiterWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "translation_rate_limiter_wait_seconds",
		Help:    "Time an operation spent queued before dispatch",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
	}, []string{"endpoint"})

	RateLimiterPenaltiesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "translation_rate_limiter_penalties_total",
		Help: "Backoff penalties applied after the backend reported rate limiting",
	}, []string{"endpoint"})
)

// Store metrics, refreshed by UpdateTranslationMetrics
var (
	TranslationRecordsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "translation_records_total",
		Help: "Cached translation records in the store",
	})

	TranslationRecordsByTarget = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "translation_records_by_target_language",
		Help: "Cached translation records per target language",
	}, []string{"language"})

	TranslationRecordsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "translation_records_purged_total",
		Help: "Records removed by the retention sweep",
	})
)
