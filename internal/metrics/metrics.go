package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/carewatch/guardian/internal/connection"
	"github.com/carewatch/guardian/internal/protocol"
)

const namespace = "guardian"

var statuses = []connection.Status{
	connection.StatusDisconnected,
	connection.StatusConnecting,
	connection.StatusConnected,
	connection.StatusReconnecting,
}

// Metrics holds every instrument exported by the daemon. It implements
// connection.Observer.
type Metrics struct {
	registry *prometheus.Registry

	status           *prometheus.GaugeVec
	reconnects       prometheus.Counter
	reconnectAttempt prometheus.Gauge
	received         *prometheus.CounterVec
	requests         *prometheus.CounterVec
	requestLatency   *prometheus.HistogramVec
	pending          prometheus.Gauge

	AlertsWritten  prometheus.Counter
	AlertConflicts prometheus.Counter
	WriterFlushes  prometheus.Counter
	WriterErrors   prometheus.Counter
	PollRounds     prometheus.Counter
	PollFailures   prometheus.Counter
	EldersKnown    prometheus.Gauge
	EldersOnline   prometheus.Gauge
}

// New creates the instruments and registers them, along with the Go runtime
// and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "status",
			Help:      "Current relay connection status (1 for the active status)",
		}, []string{"status"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnect attempts scheduled after a lost connection",
		}),
		reconnectAttempt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "reconnect_attempt",
			Help:      "Attempt number of the most recently scheduled reconnect",
		}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "messages_received_total",
			Help:      "Inbound envelopes by type",
		}, []string{"type"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "requests_total",
			Help:      "Correlated requests by type and outcome",
		}, []string{"type", "outcome"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "request_duration_seconds",
			Help:      "Time from send to completion of correlated requests",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"type"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "pending_requests",
			Help:      "Requests awaiting a response",
		}),
		AlertsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "alerts_inserted_total",
			Help:      "Alert rows inserted",
		}),
		AlertConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "alert_conflicts_total",
			Help:      "Alert rows skipped because they already existed",
		}),
		WriterFlushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "flushes_total",
			Help:      "Successful batch flushes",
		}),
		WriterErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "errors_total",
			Help:      "Failed batch flushes",
		}),
		PollRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "rounds_total",
			Help:      "Completed state polling rounds",
		}),
		PollFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "failures_total",
			Help:      "GET_STATE requests that failed",
		}),
		EldersKnown: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "elders",
			Name:      "known",
			Help:      "Paired elders in the registry",
		}),
		EldersOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "elders",
			Name:      "online",
			Help:      "Paired elders currently marked online",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.status, m.reconnects, m.reconnectAttempt, m.received,
		m.requests, m.requestLatency, m.pending,
		m.AlertsWritten, m.AlertConflicts, m.WriterFlushes, m.WriterErrors,
		m.PollRounds, m.PollFailures, m.EldersKnown, m.EldersOnline,
	)
	m.StatusChanged(connection.StatusDisconnected)
	return m
}

// Registry returns the registry holding every instrument.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// StatusChanged implements connection.Observer.
func (m *Metrics) StatusChanged(s connection.Status) {
	for _, st := range statuses {
		v := 0.0
		if st == s {
			v = 1
		}
		m.status.WithLabelValues(string(st)).Set(v)
	}
}

// ReconnectScheduled implements connection.Observer.
func (m *Metrics) ReconnectScheduled(attempt int) {
	m.reconnects.Inc()
	m.reconnectAttempt.Set(float64(attempt))
}

// MessageReceived implements connection.Observer.
func (m *Metrics) MessageReceived(t protocol.MessageType) {
	m.received.WithLabelValues(string(t)).Inc()
}

// RequestFinished implements connection.Observer.
func (m *Metrics) RequestFinished(t protocol.MessageType, outcome string, elapsed time.Duration) {
	m.requests.WithLabelValues(string(t), outcome).Inc()
	m.requestLatency.WithLabelValues(string(t)).Observe(elapsed.Seconds())
}

// PendingChanged implements connection.Observer.
func (m *Metrics) PendingChanged(n int) {
	m.pending.Set(float64(n))
}
