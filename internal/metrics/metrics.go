// Package metrics declares the engine's prometheus collectors on a private
// registry so tests never trip over double registration.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector the engine records. Construct one per
// process with New and share it across services, handlers, and jobs.
type Metrics struct {
	registry *prometheus.Registry

	BetsPlaced   prometheus.Counter
	BetsRejected *prometheus.CounterVec
	Settlements  prometheus.Counter
	BetsSettled  *prometheus.CounterVec
	FeedErrors   *prometheus.CounterVec
	EventsSent   *prometheus.CounterVec

	SettlementDuration prometheus.Histogram
	RequestDuration    *prometheus.HistogramVec

	WSClients prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		BetsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tipengine_bets_placed_total",
			Help: "Bets accepted and persisted.",
		}),
		BetsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tipengine_bets_rejected_total",
			Help: "Bets rejected before any write, by reason.",
		}, []string{"reason"}),
		Settlements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tipengine_settlements_total",
			Help: "Matches settled.",
		}),
		BetsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tipengine_bets_settled_total",
			Help: "Bets resolved by settlement, by outcome.",
		}, []string{"outcome"}),
		FeedErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tipengine_feed_errors_total",
			Help: "Upstream feed failures, by feed.",
		}, []string{"feed"}),
		EventsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tipengine_events_emitted_total",
			Help: "Domain events handed to an outbound sink, by sink.",
		}, []string{"sink"}),

		SettlementDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tipengine_settlement_duration_seconds",
			Help:    "Wall time of the settlement transaction.",
			Buckets: prometheus.DefBuckets,
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tipengine_http_request_duration_seconds",
			Help:    "HTTP request latency, by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tipengine_ws_clients",
			Help: "Connected websocket clients.",
		}),
	}

	m.registry.MustRegister(
		m.BetsPlaced, m.BetsRejected,
		m.Settlements, m.BetsSettled,
		m.FeedErrors, m.EventsSent,
		m.SettlementDuration, m.RequestDuration,
		m.WSClients,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
