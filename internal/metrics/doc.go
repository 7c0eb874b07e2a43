// Package metrics declares the Prometheus collectors exported on /metrics.
//
// Collectors register with the default registry at package init through
// promauto; callers update them directly.
package metrics
