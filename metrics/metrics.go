// Package metrics exposes collaboration counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "livecodeshare"

// Metrics owns its registry so tests and multiple servers never collide on
// prometheus.DefaultRegisterer.
type Metrics struct {
	namespace string
	registry  *prometheus.Registry
	factory   promauto.Factory

	connectionsTotal    prometheus.Counter
	disconnectionsTotal prometheus.Counter
	broadcastsTotal     *prometheus.CounterVec
	roomsCreatedTotal   prometheus.Counter
	roomsReapedTotal    prometheus.Counter
}

func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		namespace: namespace,
		registry:  registry,
		factory:   factory,

		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of admitted client connections",
		}),
		disconnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnections_total",
			Help:      "Total number of client disconnects",
		}),
		broadcastsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Total number of events delivered to room members",
		}, []string{"event"}),
		roomsCreatedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_created_total",
			Help:      "Total number of rooms created",
		}),
		roomsReapedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_reaped_total",
			Help:      "Total number of empty rooms removed after the grace period",
		}),
	}
}

// WatchGauges registers gauges that are sampled on every scrape.
func (m *Metrics) WatchGauges(activeRooms, activeConnections func() int) {
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "active_rooms",
		Help:      "Number of rooms currently held in memory",
	}, func() float64 { return float64(activeRooms()) })

	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "active_connections",
		Help:      "Number of connected clients",
	}, func() float64 { return float64(activeConnections()) })
}

func (m *Metrics) ConnectionOpened() { m.connectionsTotal.Inc() }

func (m *Metrics) ConnectionClosed() { m.disconnectionsTotal.Inc() }

func (m *Metrics) Broadcast(event string, recipients int) {
	m.broadcastsTotal.WithLabelValues(event).Add(float64(recipients))
}

func (m *Metrics) RoomCreated(string) { m.roomsCreatedTotal.Inc() }

func (m *Metrics) RoomReaped(string) { m.roomsReapedTotal.Inc() }

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
