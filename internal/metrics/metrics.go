package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screencap_http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "screencap_http_request_duration_seconds",
			Help:    "HTTP API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Session metrics
var (
	SessionTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screencap_session_transitions_total",
			Help: "Session state transitions by target status",
		},
		[]string{"status"},
	)

	SessionStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "screencap_session_status",
			Help: "1 for the current session status, 0 otherwise",
		},
		[]string{"status"},
	)

	RecordingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screencap_recordings_total",
			Help: "Completed recordings by stop trigger",
		},
		[]string{"trigger"}, // "user", "host"
	)

	RecordingDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "screencap_recording_duration_seconds",
			Help:    "Authoritative duration of completed recordings",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	RecordingBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "screencap_recording_bytes",
			Help:    "Size of completed recordings in bytes",
			Buckets: prometheus.ExponentialBuckets(1<<20, 4, 8),
		},
	)

	AcquisitionFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screencap_acquisition_failures_total",
			Help: "Capture grants that were denied",
		},
		[]string{"kind"}, // "display", "microphone"
	)

	FinalizeFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "screencap_finalize_failures_total",
			Help: "Recordings exposed without duration correction",
		},
	)
)

// Transcode metrics
var (
	TranscodeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screencap_transcode_total",
			Help: "Transcode runs by result",
		},
		[]string{"result"}, // "success", "failure"
	)

	TranscodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "screencap_transcode_duration_seconds",
			Help:    "Time spent remuxing recordings",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	TranscodeEngineReady = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "screencap_transcode_engine_ready",
			Help: "1 once the transcode engine has loaded",
		},
	)
)

// Library metrics
var (
	SavedRecordingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screencap_saved_recordings_total",
			Help: "Recordings written to the library by kind",
		},
		[]string{"kind"}, // "original", "converted"
	)
)
