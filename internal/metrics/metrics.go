package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "market_chat"

// Metrics holds the session manager's collectors.
type Metrics struct {
	SessionsStarted      prometheus.Counter
	ReconnectsScheduled  prometheus.Counter
	HeartbeatTimeouts    prometheus.Counter
	RetriesExhausted     prometheus.Counter
	FramesDropped        prometheus.Counter
	MessagesDelivered    prometheus.Counter
	DuplicatesSuppressed prometheus.Counter
	SendFailures         prometheus.Counter
	SessionState         prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "session",
			Name:      "started_total",
			Help:      "Connection attempts started",
		}),
		ReconnectsScheduled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "session",
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnections scheduled after an unexpected close",
		}),
		HeartbeatTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "heartbeat",
			Name:      "timeouts_total",
			Help:      "Probes that went unacknowledged",
		}),
		RetriesExhausted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "session",
			Name:      "retries_exhausted_total",
			Help:      "Times the reconnection ceiling was reached",
		}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "codec",
			Name:      "frames_dropped_total",
			Help:      "Malformed inbound frames dropped",
		}),
		MessagesDelivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "messages",
			Name:      "delivered_total",
			Help:      "Chat messages delivered to the caller",
		}),
		DuplicatesSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "messages",
			Name:      "duplicates_total",
			Help:      "Inbound chat messages dropped as duplicates",
		}),
		SendFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "messages",
			Name:      "send_failures_total",
			Help:      "Outbound messages the HTTP API rejected",
		}),
		SessionState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "session",
			Name:      "state",
			Help:      "Current session state (0 idle, 1 connecting, 2 open, 3 closing, 4 closed)",
		}),
	}
}

// NewUnregistered returns collectors that are not exposed anywhere.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
