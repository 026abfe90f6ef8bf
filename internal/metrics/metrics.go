package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by route and status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equipmon_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "equipmon_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	ReadingsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equipmon_readings_ingested_total",
			Help: "Readings accepted or rejected at ingestion",
		},
		[]string{"source", "result"},
	)

	// SweepsTotal counts sweeps by outcome: completed or skipped (previous sweep still running).
	SweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equipmon_sweeps_total",
			Help: "Scheduler sweeps by outcome",
		},
		[]string{"outcome"},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "equipmon_sweep_duration_seconds",
			Help:    "Duration of a full sweep",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	DeviceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equipmon_device_failures_total",
			Help: "Per-device evaluation failures during sweeps",
		},
		[]string{"reason"},
	)

	ConfigurationGaps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "equipmon_configuration_gaps_total",
			Help: "Readings skipped because no threshold covers them",
		},
	)

	AlertTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equipmon_alert_transitions_total",
			Help: "Alert lifecycle transitions",
		},
		[]string{"kind", "severity"},
	)

	OpenAlerts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "equipmon_open_alerts",
			Help: "Number of currently open alerts",
		},
	)

	LongRunningOperations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "equipmon_long_running_operations_total",
			Help: "Operations flagged for exceeding their duration budget",
		},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equipmon_notifications_total",
			Help: "Notification deliveries by channel and status",
		},
		[]string{"channel", "status"},
	)

	NotificationQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "equipmon_notification_queue_size",
			Help: "Current size of the notification queue",
		},
	)

	DroppedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "equipmon_dropped_events_total",
			Help: "Events dropped because the notification queue was full",
		},
	)

	EnrichmentFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "equipmon_enrichment_failures_total",
			Help: "Explanation requests that failed or timed out",
		},
	)

	CacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equipmon_cache_operations_total",
			Help: "Latest-reading cache operations",
		},
		[]string{"operation", "status"},
	)

	KafkaPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equipmon_kafka_publish_total",
			Help: "Events published to the alerts topic",
		},
		[]string{"status"},
	)
)
