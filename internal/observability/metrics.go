package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the feed controller.
type Metrics struct {
	// Feed client metrics.
	FeedRequests *prometheus.CounterVec   // labels: window, outcome={success,network_error,parse_error}
	FeedDuration *prometheus.HistogramVec // labels: window
	FeedFeatures *prometheus.GaugeVec     // labels: window

	// Normalization metrics.
	EventsNormalized prometheus.Counter
	RecordsSkipped   prometheus.Counter

	// Controller state metrics.
	ControllerRunning prometheus.Gauge
	StaleResponses    prometheus.Counter
	FetchState        *prometheus.GaugeVec // labels: state={idle,loading,ready,failed}
	WarningVisible    prometheus.Gauge
	VisibleEvents     prometheus.Gauge

	// Geocoding metrics.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}

	// Snapshot publishing metrics.
	SnapshotsPublished prometheus.Counter
	SnapshotErrors     prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		FeedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_feed",
			Name:      "feed_requests_total",
			Help:      "USGS feed requests by time window and outcome.",
		}, []string{"window", "outcome"}),
		FeedDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quake_feed",
			Name:      "feed_request_duration_seconds",
			Help:      "USGS feed request duration including body decode.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"window"}),
		FeedFeatures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "quake_feed",
			Name:      "feed_features",
			Help:      "Number of features in the most recent feed per window.",
		}, []string{"window"}),
		EventsNormalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_feed",
			Name:      "events_normalized_total",
			Help:      "Total features converted into seismic events.",
		}),
		RecordsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_feed",
			Name:      "records_skipped_total",
			Help:      "Total malformed features skipped during normalization.",
		}),
		ControllerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_feed",
			Name:      "controller_running",
			Help:      "1 when the controller loop is active, 0 when shut down.",
		}),
		StaleResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_feed",
			Name:      "stale_responses_total",
			Help:      "Fetch results discarded because a newer selection superseded them.",
		}),
		FetchState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "quake_feed",
			Name:      "fetch_state",
			Help:      "1 for the active fetch state, 0 for the others.",
		}, []string{"state"}),
		WarningVisible: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_feed",
			Name:      "large_dataset_warning_visible",
			Help:      "1 while the large-dataset warning is shown.",
		}),
		VisibleEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_feed",
			Name:      "visible_events",
			Help:      "Events passing the current magnitude filter.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_feed",
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_feed",
			Name:      "geocode_cache_total",
			Help:      "Reverse geocoding cache lookups by result.",
		}, []string{"result"}),
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_feed",
			Name:      "snapshots_published_total",
			Help:      "Snapshots written to the Kafka snapshot topic.",
		}),
		SnapshotErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_feed",
			Name:      "snapshot_errors_total",
			Help:      "Snapshot publish failures.",
		}),
	}

	prometheus.MustRegister(
		m.FeedRequests,
		m.FeedDuration,
		m.FeedFeatures,
		m.EventsNormalized,
		m.RecordsSkipped,
		m.ControllerRunning,
		m.StaleResponses,
		m.FetchState,
		m.WarningVisible,
		m.VisibleEvents,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.SnapshotsPublished,
		m.SnapshotErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		FeedRequests:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "quake_feed", Name: "feed_requests_total"}, []string{"window", "outcome"}),
		FeedDuration:       prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "quake_feed", Name: "feed_request_duration_seconds"}, []string{"window"}),
		FeedFeatures:       prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "quake_feed", Name: "feed_features"}, []string{"window"}),
		EventsNormalized:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "quake_feed", Name: "events_normalized_total"}),
		RecordsSkipped:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "quake_feed", Name: "records_skipped_total"}),
		ControllerRunning:  prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "quake_feed", Name: "controller_running"}),
		StaleResponses:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "quake_feed", Name: "stale_responses_total"}),
		FetchState:         prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "quake_feed", Name: "fetch_state"}, []string{"state"}),
		WarningVisible:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "quake_feed", Name: "large_dataset_warning_visible"}),
		VisibleEvents:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "quake_feed", Name: "visible_events"}),
		GeocodeRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "quake_feed", Name: "geocode_requests_total"}, []string{"outcome"}),
		GeocodeCache:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "quake_feed", Name: "geocode_cache_total"}, []string{"result"}),
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "quake_feed", Name: "snapshots_published_total"}),
		SnapshotErrors:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "quake_feed", Name: "snapshot_errors_total"}),
	}
}
