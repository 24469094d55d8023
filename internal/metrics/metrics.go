package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "camrelay"

// Drop reasons for relayed and fanned-out messages.
const (
	DropUnknownTarget = "unknown_target"
	DropBackpressure  = "backpressure"
	DropRateLimited   = "rate_limited"
	DropBadMessage    = "bad_message"
)

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves Prometheus metrics.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Stats is sampled on every scrape.
type Stats struct {
	Cameras int
	Viewers int
}

// Metrics holds the signaling counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	Connections prometheus.Gauge
	Relayed     *prometheus.CounterVec
	Dropped     *prometheus.CounterVec
	JoinErrors  prometheus.Counter
	Broadcasts  prometheus.Counter
}

// New creates and registers signaling metrics on reg. stats backs the camera
// and viewer gauges.
func New(reg prometheus.Registerer, stats func() Stats) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of open signaling connections.",
		}),
		Relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "relayed_total",
			Help:      "Negotiation messages delivered to their target, by kind.",
		}, []string{"kind"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "dropped_total",
			Help:      "Messages that were not delivered, by reason.",
		}, []string{"reason"}),
		JoinErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "join_errors_total",
			Help:      "Rejected join requests.",
		}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Camera list broadcasts sent to all connections.",
		}),
	}
	reg.MustRegister(m.Connections, m.Relayed, m.Dropped, m.JoinErrors, m.Broadcasts)

	if stats != nil {
		reg.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cameras_active",
				Help:      "Number of live cameras.",
			}, func() float64 { return float64(stats().Cameras) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "viewers_active",
				Help:      "Sum of viewer counts over live cameras.",
			}, func() float64 { return float64(stats().Viewers) }),
		)
	}
	return m
}

func (m *Metrics) ConnOpened() {
	if m != nil {
		m.Connections.Inc()
	}
}

func (m *Metrics) ConnClosed() {
	if m != nil {
		m.Connections.Dec()
	}
}

func (m *Metrics) Relay(kind string) {
	if m != nil {
		m.Relayed.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) Drop(reason string) {
	if m != nil {
		m.Dropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) JoinError() {
	if m != nil {
		m.JoinErrors.Inc()
	}
}

func (m *Metrics) Broadcast() {
	if m != nil {
		m.Broadcasts.Inc()
	}
}
