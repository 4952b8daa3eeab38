package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons reported on the dropped payloads counter.
const (
	dropMalformed   = "malformed"
	dropUnknownType = "unknown_type"
	dropTooLarge    = "too_large"
	dropRateLimited = "rate_limited"
	dropStale       = "stale"
)

// Metrics groups the chat collectors. All of them are registered on the
// registry passed to NewMetrics, so tests can use a private registry.
type Metrics struct {
	gatherer prometheus.Gatherer

	ConnectionsAccepted   prometheus.Counter
	AcceptErrors          prometheus.Counter
	UnassignedConnections prometheus.Gauge
	RoomMembers           prometheus.Gauge
	Rooms                 prometheus.Gauge
	Commands              *prometheus.CounterVec
	DroppedPayloads       *prometheus.CounterVec
	Deliveries            prometheus.Counter
	SlowClientsDropped    prometheus.Counter
}

// NewMetrics creates and registers the collectors on reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		ConnectionsAccepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "roomchat",
			Name:      "connections_accepted_total",
			Help:      "Connections accepted on any transport.",
		}),
		AcceptErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: "roomchat",
			Name:      "accept_errors_total",
			Help:      "Failed accept calls on the TCP listener.",
		}),
		UnassignedConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "roomchat",
			Name:      "unassigned_connections",
			Help:      "Connections that have not completed the join handshake.",
		}),
		RoomMembers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "roomchat",
			Name:      "room_members",
			Help:      "Connections that are members of a room.",
		}),
		Rooms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "roomchat",
			Name:      "rooms",
			Help:      "Rooms created since start.",
		}),
		Commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomchat",
			Name:      "commands_total",
			Help:      "Commands handled, by command type.",
		}, []string{"command"}),
		DroppedPayloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomchat",
			Name:      "dropped_payloads_total",
			Help:      "Inbound payloads discarded, by reason.",
		}, []string{"reason"}),
		Deliveries: f.NewCounter(prometheus.CounterOpts{
			Namespace: "roomchat",
			Name:      "deliveries_total",
			Help:      "Payloads queued to member connections.",
		}),
		SlowClientsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "roomchat",
			Name:      "slow_clients_dropped_total",
			Help:      "Connections closed because their send buffer was full.",
		}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
