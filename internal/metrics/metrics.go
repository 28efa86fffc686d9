package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequestsTotal counts outbound game API calls by operation and HTTP status ("error" for transport failures)
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluffy_api_requests_total",
			Help: "Total number of requests sent to the game API",
		},
		[]string{"operation", "code"},
	)

	// APIRequestDuration tracks round trip time of game API calls in seconds
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fluffy_api_request_duration_seconds",
			Help:    "Duration of game API requests in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// CacheLookupsTotal counts result cache lookups by cache name and result (hit, miss)
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluffy_cache_lookups_total",
			Help: "Total number of result cache lookups",
		},
		[]string{"name", "result"},
	)

	// CacheInvalidationsTotal counts invalidations per cache name
	CacheInvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluffy_cache_invalidations_total",
			Help: "Total number of result cache invalidations",
		},
		[]string{"name"},
	)

	// WorkflowRunsTotal counts finished workflow runs by status
	WorkflowRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluffy_workflow_runs_total",
			Help: "Total number of workflow runs",
		},
		[]string{"status"},
	)

	// WorkflowStepDuration tracks how long each workflow step took
	WorkflowStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fluffy_workflow_step_duration_seconds",
			Help:    "Duration of workflow steps in seconds",
			Buckets: []float64{0.1, 1, 10, 60, 300, 1800},
		},
		[]string{"step", "status"},
	)

	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluffy_extractions_total",
			Help: "Total number of extraction iterations by yielded trade symbol",
		},
		[]string{"trade_symbol", "sold"},
	)

	EventTicksDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fluffy_event_ticks_dropped_total",
			Help: "Live-state ticks skipped because the previous fetch was still running",
		},
	)

	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fluffy_event_subscribers",
			Help: "Number of connected live-state subscribers",
		},
	)
)

// RecordAPIRequest records one game API call. A zero code means the request never got a response.
func RecordAPIRequest(operation string, code int, durationSeconds float64) {
	label := "error"
	if code != 0 {
		label = strconv.Itoa(code)
	}
	APIRequestsTotal.WithLabelValues(operation, label).Inc()
	APIRequestDuration.WithLabelValues(operation).Observe(durationSeconds)
}

func RecordCacheHit(name string) {
	CacheLookupsTotal.WithLabelValues(name, "hit").Inc()
}

func RecordCacheMiss(name string) {
	CacheLookupsTotal.WithLabelValues(name, "miss").Inc()
}

func RecordCacheInvalidation(name string) {
	CacheInvalidationsTotal.WithLabelValues(name).Inc()
}

// RecordWorkflowStep records the duration of a workflow step with status "ok" or "failed"
func RecordWorkflowStep(step, status string, durationSeconds float64) {
	WorkflowStepDuration.WithLabelValues(step, status).Observe(durationSeconds)
}

func RecordWorkflowRun(status string) {
	WorkflowRunsTotal.WithLabelValues(status).Inc()
}

func RecordExtraction(tradeSymbol string, sold bool) {
	ExtractionsTotal.WithLabelValues(tradeSymbol, strconv.FormatBool(sold)).Inc()
}
