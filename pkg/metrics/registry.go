// Package metrics provides Prometheus metrics collection for MediaVault.
//
// All metrics are optional: if InitRegistry is never called, the
// constructors return nil and components fall back to their built-in
// no-op implementations, so an uninstrumented process pays nothing.
//
// Usage:
//
//	metrics.InitRegistry()
//	mediaMetrics := metrics.NewMediaMetrics()
//	storage, _ := media.NewMediaStorage(dir, backends, media.Options{Metrics: mediaMetrics})
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is the global Prometheus registry for all MediaVault
	// metrics. Write-once via registryOnce, read-many afterwards.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry. Safe to call
// multiple times; subsequent calls are ignored.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global registry, or nil if InitRegistry has
// not been called (metrics disabled).
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether metrics collection is active.
func IsEnabled() bool {
	return registry != nil
}
