package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartrent",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "smartrent",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	engineOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartrent",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Engine operations by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
	engineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "smartrent",
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Engine operation duration in seconds, lock wait included.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	publishFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartrent",
			Subsystem: "queue",
			Name:      "publish_failures_total",
			Help:      "Events that could not be published to the broker.",
		},
		[]string{"queue"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, engineOps, engineDuration, publishFailures)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// Metrics is the engine's view of the collectors.  It satisfies
// engine.Recorder.
type Metrics struct{}

func NewMetrics() Metrics {
	RegisterMetrics()
	return Metrics{}
}

func (Metrics) RecordOperation(kind, outcome string, duration time.Duration) {
	engineOps.WithLabelValues(kind, outcome).Inc()
	engineDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (Metrics) RecordPublishFailure(queue string) {
	publishFailures.WithLabelValues(queue).Inc()
}
