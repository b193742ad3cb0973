package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mediavault/mediavault/pkg/media"
)

// mediaMetrics is the Prometheus implementation of media.Metrics.
//
// It tracks coordinator operations (store/fetch/ensure-local), bytes
// moved through the local cache, spam rejections, and per-backend call
// latencies and errors.
type mediaMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTotal        *prometheus.CounterVec
	spamBlockedTotal  prometheus.Counter
	backendOpsTotal   *prometheus.CounterVec
	backendDuration   *prometheus.HistogramVec
}

// NewMediaMetrics creates a Prometheus-backed media.Metrics instance.
//
// Returns nil when metrics are disabled (InitRegistry not called),
// which makes the coordinator use its built-in no-op implementation.
func NewMediaMetrics() media.Metrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &mediaMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediavault_media_operations_total",
				Help: "Total media storage operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mediavault_media_operation_duration_seconds",
				Help:    "Duration of media storage operations in seconds",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"operation"},
		),
		bytesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediavault_media_bytes_total",
				Help: "Total bytes moved through the local media cache by direction",
			},
			[]string{"direction"},
		),
		spamBlockedTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "mediavault_media_spam_blocked_total",
				Help: "Total media uploads blocked by the spam checker",
			},
		),
		backendOpsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediavault_backend_operations_total",
				Help: "Total storage backend calls by backend, operation and status",
			},
			[]string{"backend", "operation", "status"},
		),
		backendDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mediavault_backend_operation_duration_seconds",
				Help:    "Duration of storage backend calls in seconds",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"backend", "operation"},
		),
	}
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *mediaMetrics) ObserveOperation(op string, d time.Duration, err error) {
	m.operationsTotal.WithLabelValues(op, statusLabel(err)).Inc()
	m.operationDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *mediaMetrics) RecordBytes(direction string, n int64) {
	if n > 0 {
		m.bytesTotal.WithLabelValues(direction).Add(float64(n))
	}
}

func (m *mediaMetrics) RecordSpamBlocked() {
	m.spamBlockedTotal.Inc()
}

func (m *mediaMetrics) ObserveBackend(backend, op string, d time.Duration, err error) {
	m.backendOpsTotal.WithLabelValues(backend, op, statusLabel(err)).Inc()
	m.backendDuration.WithLabelValues(backend, op).Observe(d.Seconds())
}
