// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Result metrics

	// ResultsTotal counts results written to HTTP responses
	ResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "railyard",
			Name:      "results_total",
			Help:      "Results written to HTTP responses by status and first error code",
		},
		[]string{"status", "code"}, // code is "none" on success
	)

	// HTTP metrics

	// HTTPRequestDuration tracks request latency by route pattern
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "railyard",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Bus metrics

	// BusMessagesHandled counts consumed messages by disposition
	BusMessagesHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "railyard",
			Subsystem: "bus",
			Name:      "messages_handled_total",
			Help:      "Consumed messages by consumer and disposition",
		},
		[]string{"consumer", "action"}, // action: ack, retry, drop
	)

	// BusPublished counts publish attempts
	BusPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "railyard",
			Subsystem: "bus",
			Name:      "published_total",
			Help:      "Publish attempts by subject and result",
		},
		[]string{"subject", "result"}, // result: success, error
	)
)

// NoCode labels results that carry no error.
const NoCode = "none"

// RecordResult counts a result written with status and first error code.
func RecordResult(status int, code string) {
	if code == "" {
		code = NoCode
	}
	ResultsTotal.WithLabelValues(strconv.Itoa(status), code).Inc()
}

// RecordPublish counts a publish attempt.
func RecordPublish(subject string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	BusPublished.WithLabelValues(subject, result).Inc()
}
