package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// singleton instance
	instance *Metrics
	once     sync.Once
)

// Metrics holds Prometheus metrics for arrivald
type Metrics struct {
	// API metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	APIErrorsTotal     *prometheus.CounterVec

	// Hub metrics
	HubBlocksOpen      prometheus.Gauge
	HubEventsFired     *prometheus.CounterVec
	HubEventsDelivered prometheus.Counter

	// Monitor metrics
	SubscriptionActive   prometheus.Gauge
	RegistrationFailures *prometheus.CounterVec
	DispatchTotal        *prometheus.CounterVec
	DispatchDuration     prometheus.Histogram
	RegistryLockWait     prometheus.Histogram
	ResolveTotal         *prometheus.CounterVec

	// Registry and storage metrics
	TargetsTracked    *prometheus.GaugeVec
	StorageOperations *prometheus.CounterVec
	PropertyCache     *prometheus.CounterVec
}

// GetMetrics returns the metrics singleton
func GetMetrics() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

// newMetrics initializes and registers all metrics
func newMetrics() *Metrics {
	m := &Metrics{}

	// API metrics
	m.APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arrivald_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	m.APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arrivald_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // from 1ms to ~16s
		},
		[]string{"method", "path"},
	)

	m.APIErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arrivald_api_errors_total",
			Help: "Total number of API errors",
		},
		[]string{"method", "path", "error_type"},
	)

	// Hub metrics
	m.HubBlocksOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arrivald_hub_blocks_open",
			Help: "Number of open notification blocks",
		},
	)

	m.HubEventsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arrivald_hub_events_fired_total",
			Help: "Total number of events fired into the hub",
		},
		[]string{"delivered"}, // true, false
	)

	m.HubEventsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arrivald_hub_events_delivered_total",
			Help: "Total number of handler invocations made by the hub",
		},
	)

	// Monitor metrics
	m.SubscriptionActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arrivald_monitor_subscription_active",
			Help: "1 when the device arrival subscription is open",
		},
	)

	m.RegistrationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arrivald_monitor_registration_failures_total",
			Help: "Total number of failed registration attempts",
		},
		[]string{"step"}, // open, set_callback
	)

	m.DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arrivald_monitor_dispatch_total",
			Help: "Total number of dispatched notifications by outcome",
		},
		[]string{"outcome"}, // arrival, resolve_failed, no_match
	)

	m.DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "arrivald_monitor_dispatch_duration_seconds",
			Help:    "Duration of a single notification dispatch in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 10), // from 0.1ms to ~51ms
		},
	)

	m.RegistryLockWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "arrivald_monitor_registry_lock_wait_seconds",
			Help:    "Time spent waiting for the target registry lock",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
	)

	m.ResolveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arrivald_resolver_queries_total",
			Help: "Total number of property queries made while resolving names",
		},
		[]string{"property", "result"},
	)

	// Registry and storage metrics
	m.TargetsTracked = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arrivald_targets_tracked",
			Help: "Number of tracked targets by state",
		},
		[]string{"state"},
	)

	m.StorageOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arrivald_storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "success"},
	)

	m.PropertyCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arrivald_device_cache_lookups_total",
			Help: "Device property cache lookups by result",
		},
		[]string{"result"}, // hit, miss
	)

	return m
}
