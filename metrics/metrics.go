// Package metrics provides Prometheus metrics for hdfscache operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hdfscache_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hdfscache_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Remote store metrics
	RemoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hdfscache_remote_requests_total",
			Help: "Total number of requests sent to the remote store",
		},
		[]string{"operation", "status"}, // status: HTTP code, "transport_error" or "rate_limited"
	)

	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hdfscache_remote_request_duration_seconds",
			Help:    "Remote store request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Local cache metrics
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hdfscache_cache_lookups_total",
			Help: "Total number of local cache lookups",
		},
		[]string{"result"}, // "hit", "miss"
	)

	// File operations metrics
	FileOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hdfscache_file_operations_total",
			Help: "Total number of file operations",
		},
		[]string{"operation", "status"}, // operation: "create", "read", "replace", "delete"
	)

	// Rotation metrics
	RotationFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hdfscache_rotation_files_total",
			Help: "Total number of files processed by key rotation",
		},
		[]string{"outcome"}, // "rotated", "read_failed", "write_failed"
	)

	RotationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hdfscache_rotation_duration_seconds",
			Help:    "Key rotation run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	// Lock manager metrics
	LockOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hdfscache_lock_operations_total",
			Help: "Total number of lock operations",
		},
		[]string{"operation", "status"}, // operation: "acquire", "release"; status: "success", "failure"
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hdfscache_errors_total",
			Help: "Total number of errors by component",
		},
		[]string{"component", "error_type"},
	)
)
