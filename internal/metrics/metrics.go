package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commute_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "commute_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Trip metrics
	PhaseTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commute_trip_phase_transitions_total",
			Help: "Trip phase transitions by target phase",
		},
		[]string{"phase"},
	)

	TripCompletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commute_trip_completions_total",
			Help: "Completed trips by reward source",
		},
		[]string{"reward_source"},
	)

	ActiveTripsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "commute_active_trips",
			Help: "Trip contexts currently held in memory",
		},
	)

	TripWarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commute_trip_warnings_total",
			Help: "Non-blocking trip warnings by kind",
		},
		[]string{"kind"},
	)

	// Position metrics
	PositionUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commute_position_updates_total",
			Help: "Position fixes received by source",
		},
		[]string{"source"},
	)

	// Geocoding metrics
	GeocodeFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commute_geocode_fallbacks_total",
			Help: "Address resolutions served by a fallback",
		},
		[]string{"kind"},
	)

	GeocodeCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "commute_geocode_cache_hits_total",
			Help: "Address resolutions served from cache",
		},
	)

	// WebSocket metrics
	WebSocketConnectionsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "commute_websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	// Event metrics
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commute_events_published_total",
			Help: "Trip events published by routing key and status",
		},
		[]string{"routing_key", "status"},
	)
)

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
