package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector defines the interface for metrics collection
type Collector interface {
	// Connection metrics
	ClientConnected()
	ClientDisconnected()

	// Event metrics
	EventReceived(eventType string)
	EventError(eventType, code string)

	// Presence metrics
	PresenceTransition(status string)

	// Relay metrics
	MessageBroadcast(sizeBytes int)
	SignalRelayed(kind string, delivered int)

	// Handler returns an HTTP handler for the metrics endpoint
	Handler() http.Handler
}

// PrometheusCollector implements the Collector interface using Prometheus
type PrometheusCollector struct {
	activeConnections prometheus.Gauge
	clientConnections prometheus.Counter
	clientDisconnects prometheus.Counter

	eventsReceived *prometheus.CounterVec
	eventErrors    *prometheus.CounterVec

	presenceTransitions *prometheus.CounterVec

	messagesBroadcast prometheus.Counter
	messageSize       prometheus.Histogram

	signalsRelayed   *prometheus.CounterVec
	signalDeliveries *prometheus.CounterVec
}

// NewPrometheusCollector creates a new PrometheusCollector
func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		activeConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "relay_active_connections",
			Help: "Number of active WebSocket connections",
		}),

		clientConnections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_client_connections_total",
			Help: "Total number of WebSocket client connections",
		}),

		clientDisconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_client_disconnects_total",
			Help: "Total number of WebSocket client disconnections",
		}),

		eventsReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_events_received_total",
				Help: "Total number of client events received",
			},
			[]string{"event_type"},
		),

		eventErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_event_errors_total",
				Help: "Total number of client events rejected",
			},
			[]string{"event_type", "code"},
		),

		presenceTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_presence_transitions_total",
				Help: "Total number of presence transitions",
			},
			[]string{"status"},
		),

		messagesBroadcast: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_messages_broadcast_total",
			Help: "Total number of chat messages broadcast to room groups",
		}),

		messageSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_message_size_bytes",
			Help:    "Size of broadcast chat messages in bytes",
			Buckets: prometheus.ExponentialBuckets(64, 2, 8), // 64B to 8KB
		}),

		signalsRelayed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_signals_relayed_total",
				Help: "Total number of call-setup signals relayed",
			},
			[]string{"kind"},
		),

		signalDeliveries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_signal_deliveries_total",
				Help: "Total number of connections call-setup signals were delivered to",
			},
			[]string{"kind"},
		),
	}
}

// ClientConnected records a client connection
func (c *PrometheusCollector) ClientConnected() {
	c.clientConnections.Inc()
	c.activeConnections.Inc()
}

// ClientDisconnected records a client disconnection
func (c *PrometheusCollector) ClientDisconnected() {
	c.clientDisconnects.Inc()
	c.activeConnections.Dec()
}

// EventReceived records a client event being received
func (c *PrometheusCollector) EventReceived(eventType string) {
	c.eventsReceived.WithLabelValues(eventType).Inc()
}

// EventError records a client event being rejected
func (c *PrometheusCollector) EventError(eventType, code string) {
	c.eventErrors.WithLabelValues(eventType, code).Inc()
}

// PresenceTransition records a presence transition
func (c *PrometheusCollector) PresenceTransition(status string) {
	c.presenceTransitions.WithLabelValues(status).Inc()
}

// MessageBroadcast records a chat message broadcast
func (c *PrometheusCollector) MessageBroadcast(sizeBytes int) {
	c.messagesBroadcast.Inc()
	c.messageSize.Observe(float64(sizeBytes))
}

// SignalRelayed records a call-setup signal relay
func (c *PrometheusCollector) SignalRelayed(kind string, delivered int) {
	c.signalsRelayed.WithLabelValues(kind).Inc()
	c.signalDeliveries.WithLabelValues(kind).Add(float64(delivered))
}

// Handler returns an HTTP handler for the metrics endpoint
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.Handler()
}

// NoopCollector implements Collector without recording anything. Used in
// tests.
type NoopCollector struct{}

// ClientConnected implements Collector
func (NoopCollector) ClientConnected() {}

// ClientDisconnected implements Collector
func (NoopCollector) ClientDisconnected() {}

// EventReceived implements Collector
func (NoopCollector) EventReceived(string) {}

// EventError implements Collector
func (NoopCollector) EventError(string, string) {}

// PresenceTransition implements Collector
func (NoopCollector) PresenceTransition(string) {}

// MessageBroadcast implements Collector
func (NoopCollector) MessageBroadcast(int) {}

// SignalRelayed implements Collector
func (NoopCollector) SignalRelayed(string, int) {}

// Handler implements Collector
func (NoopCollector) Handler() http.Handler {
	return http.NotFoundHandler()
}
