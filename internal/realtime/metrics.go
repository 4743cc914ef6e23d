package realtime

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hackportal/portal/pkg/telemetry"
)

// Metrics for the hub. Gauges go to Prometheus, message counters to OTel.
type Metrics struct {
	connections *prometheus.GaugeVec
	rooms       prometheus.Gauge
	queueDrops  prometheus.Counter

	messages *telemetry.Counter
	dropped  *telemetry.Counter
}

// NewMetrics registers the hub metrics on reg; a nil reg uses a private
// registry
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Metrics{
		connections: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "portal_hub_connections",
			Help: "Open realtime connections by room kind.",
		}, []string{"kind"}),
		rooms: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "portal_hub_rooms",
			Help: "Rooms with at least one local member.",
		}),
		queueDrops: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "portal_hub_send_queue_full_total",
			Help: "Outbound messages skipped because a client's send queue was full.",
		}),
		messages: telemetry.MustCounter(telemetry.MetricOpts{
			Name:        "hub.messages",
			Description: "Inbound realtime messages by outcome",
		}),
		dropped: telemetry.MustCounter(telemetry.MetricOpts{
			Name:        "hub.messages.dropped",
			Description: "Inbound realtime messages dropped, by reason",
		}),
	}
}

func (m *Metrics) connected(room Room) {
	m.connections.WithLabelValues(room.Kind()).Inc()
}

func (m *Metrics) disconnected(room Room) {
	m.connections.WithLabelValues(room.Kind()).Dec()
}

func (m *Metrics) setRooms(n int) {
	m.rooms.Set(float64(n))
}

func (m *Metrics) queueFull() {
	m.queueDrops.Inc()
}

func (m *Metrics) outcome(ctx context.Context, room Room, msg string, o Outcome) {
	m.messages.Inc(ctx,
		telemetry.EventIDAttr(room.EventID),
		telemetry.MessageKindAttr(msg),
		telemetry.OutcomeAttr(string(o.Kind)),
	)
	if o.Kind == OutcomeDropped {
		m.dropped.Inc(ctx,
			telemetry.EventIDAttr(room.EventID),
			telemetry.ReasonAttr(o.Reason),
		)
	}
}
