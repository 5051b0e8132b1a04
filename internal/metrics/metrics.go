// Package metrics provides Prometheus metrics for the call layer, the tree
// builder and the storage listings.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Initiating side
	callsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bucketdesk_calls_total",
			Help: "Total calls issued through the correlator",
		},
		[]string{"channel", "result"},
	)

	callDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bucketdesk_call_duration_seconds",
			Help:    "Time from request emission to response or timeout",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	callsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bucketdesk_calls_pending",
			Help: "Number of calls waiting for a response",
		},
	)

	// Handling side
	handlerTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bucketdesk_handler_responses_total",
			Help: "Total response envelopes emitted by handlers",
		},
		[]string{"channel", "code"},
	)

	handlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bucketdesk_handler_duration_seconds",
			Help:    "Handler execution time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	droppedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bucketdesk_dropped_requests_total",
			Help: "Requests dropped because no handler was registered",
		},
		[]string{"channel"},
	)

	unroutableTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bucketdesk_unroutable_responses_total",
			Help: "Responses that reached no waiting caller",
		},
	)

	// Bus
	busChannels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bucketdesk_bus_channels",
			Help: "Channels with at least one subscriber on the event bus",
		},
	)

	busDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bucketdesk_bus_dropped_messages_total",
			Help: "Messages dropped on full subscriber buffers",
		},
	)

	// Tree
	treeRebuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bucketdesk_tree_rebuild_duration_seconds",
			Help:    "Time to list a bucket and rebuild the virtual tree",
			Buckets: prometheus.DefBuckets,
		},
	)

	treeEntriesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bucketdesk_tree_entries_skipped_total",
			Help: "Listing entries omitted from the tree because of path conflicts",
		},
	)

	// Storage
	storageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bucketdesk_storage_operation_duration_seconds",
			Help:    "Storage provider operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	storageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bucketdesk_storage_operations_total",
			Help: "Total storage provider operations",
		},
		[]string{"provider", "operation", "status"},
	)

	listThrottleWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bucketdesk_list_throttle_wait_seconds",
			Help:    "Time LIST pages waited for the account rate limiter",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// CallStarted marks a call as pending.
func CallStarted() {
	callsPending.Inc()
}

// RecordCall records the outcome of a finished call ("ok", "error",
// "timeout" or "canceled").
func RecordCall(channel, result string, duration time.Duration) {
	callsPending.Dec()
	callsTotal.WithLabelValues(channel, result).Inc()
	callDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordHandler records one emitted response envelope.
func RecordHandler(channel string, code int, duration time.Duration) {
	handlerTotal.WithLabelValues(channel, strconv.Itoa(code)).Inc()
	handlerDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordDroppedRequest records a request for a channel without a handler.
func RecordDroppedRequest(channel string) {
	droppedRequestsTotal.WithLabelValues(channel).Inc()
}

// RecordUnroutableResponse records a response nobody was waiting for.
func RecordUnroutableResponse() {
	unroutableTotal.Inc()
}

// RecordTreeRebuild records a rebuild and the number of entries it skipped.
func RecordTreeRebuild(duration time.Duration, skipped int) {
	treeRebuildDuration.Observe(duration.Seconds())
	treeEntriesSkipped.Add(float64(skipped))
}

// RecordStorageOperation records a storage provider operation.
func RecordStorageOperation(provider, operation string, duration time.Duration, success bool) {
	storageOperationDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	storageOperationsTotal.WithLabelValues(provider, operation, status).Inc()
}

// RecordThrottleWait records a LIST page that had to wait for its limiter.
func RecordThrottleWait(provider string, waited time.Duration) {
	listThrottleWait.WithLabelValues(provider).Observe(waited.Seconds())
}

// RecordBusState records the bus channel count and the messages dropped
// since the previous report.
func RecordBusState(channels int, dropped int64) {
	busChannels.Set(float64(channels))
	if dropped > 0 {
		busDroppedTotal.Add(float64(dropped))
	}
}
