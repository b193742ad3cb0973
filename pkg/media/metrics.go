package media

import "time"

// Metrics collects observability data for coordinator and backend
// operations.
//
// A nil Metrics handed to NewMediaStorage selects the built-in no-op
// implementation, so instrumentation is optional and free when
// disabled. The Prometheus implementation lives in pkg/metrics.
type Metrics interface {
	// ObserveOperation records one coordinator operation (store_file,
	// fetch_media, ensure_local) with its duration and outcome.
	ObserveOperation(op string, d time.Duration, err error)

	// RecordBytes counts bytes moved through the coordinator, with
	// direction "read" or "write".
	RecordBytes(direction string, n int64)

	// RecordSpamBlocked counts media rejected by the spam checker.
	RecordSpamBlocked()

	// ObserveBackend records one backend call (store or fetch) with its
	// duration and outcome. Clean fetch misses count as success.
	ObserveBackend(backend, op string, d time.Duration, err error)
}

// noopMetrics is used when no Metrics implementation is provided.
type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, time.Duration, error)       {}
func (noopMetrics) RecordBytes(string, int64)                           {}
func (noopMetrics) RecordSpamBlocked()                                  {}
func (noopMetrics) ObserveBackend(string, string, time.Duration, error) {}
