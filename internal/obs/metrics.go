package obs

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry and records pipeline outcomes.
type Metrics struct {
	registry *prometheus.Registry

	commands      *prometheus.CounterVec
	dispatches    *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	cycleBatch    prometheus.Histogram
	projections   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_commands_total",
			Help: "Adjust inventory commands by outcome.",
		}, []string{"outcome"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_dispatch_total",
			Help: "Outbox publish attempts by outcome.",
		}, []string{"outcome"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "outbox_dispatch_cycle_seconds",
			Help:    "Duration of one outbox dispatch cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		cycleBatch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "outbox_dispatch_batch_size",
			Help:    "Messages fetched per dispatch cycle.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		projections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "projection_events_total",
			Help: "Projected events by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.commands, m.dispatches, m.cycleDuration, m.cycleBatch, m.projections)
	return m
}

func (m *Metrics) CommandHandled(outcome string) {
	m.commands.WithLabelValues(outcome).Inc()
}

func (m *Metrics) OutboxDispatched(outcome string) {
	m.dispatches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) DispatchCycleObserved(elapsed time.Duration, batchSize int) {
	m.cycleDuration.Observe(elapsed.Seconds())
	m.cycleBatch.Observe(float64(batchSize))
}

func (m *Metrics) ProjectionHandled(outcome string) {
	m.projections.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
