package tracker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles Prometheus collectors for the tracker pipeline.
type Metrics struct {
	registry         *prometheus.Registry
	cyclesTotal      prometheus.Counter
	fetchErrors      prometheus.Counter
	persistErrors    prometheus.Counter
	renderErrors     prometheus.Counter
	publishErrors    prometheus.Counter
	recordsPersisted prometheus.Counter
	publishesTotal   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		cyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bsgo",
			Name:      "cycles_total",
			Help:      "Total scheduler cycles run",
		}),
		fetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bsgo",
			Name:      "fetch_errors_total",
			Help:      "Leaderboard fetches that failed",
		}),
		persistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bsgo",
			Name:      "persist_errors_total",
			Help:      "History store writes that failed",
		}),
		renderErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bsgo",
			Name:      "render_errors_total",
			Help:      "Chart renders that failed",
		}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bsgo",
			Name:      "publish_errors_total",
			Help:      "Webhook publishes that failed",
		}),
		recordsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bsgo",
			Name:      "records_persisted_total",
			Help:      "Player records appended to the history store",
		}),
		publishesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bsgo",
			Name:      "publishes_total",
			Help:      "Successful webhook publishes by mode",
		}, []string{"mode"}),
	}

	registry.MustRegister(
		m.cyclesTotal,
		m.fetchErrors,
		m.persistErrors,
		m.renderErrors,
		m.publishErrors,
		m.recordsPersisted,
		m.publishesTotal,
	)
	return m
}

// Handler exposes the registry for an opt-in /metrics listener.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
