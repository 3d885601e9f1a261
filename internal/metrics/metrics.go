// Package metrics exposes cleaner activity as Prometheus collectors on a
// private registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/contactkeval/chain-clean/internal/arb"
	"github.com/contactkeval/chain-clean/internal/chain"
)

const namespace = "chainclean"

// Metrics implements arb.Observer.
type Metrics struct {
	reg *prometheus.Registry

	tables     *prometheus.CounterVec
	removed    *prometheus.CounterVec
	iterations *prometheus.HistogramVec
	runs       prometheus.Counter
}

var _ arb.Observer = (*Metrics)(nil)

// New registers the cleaner collectors plus the Go runtime and process
// collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		tables: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tables_total",
			Help:      "Tables cleaned, by side and terminal state.",
		}, []string{"side", "state"}),
		removed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_removed_total",
			Help:      "Quotes removed, by side and the check that flagged them.",
		}, []string{"side", "kind"}),
		iterations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "iterations",
			Help:      "Detect/remove passes needed per table.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 20},
		}, []string{"side"}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Batch runs completed.",
		}),
	}
	m.reg.MustRegister(
		m.tables, m.removed, m.iterations, m.runs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveResult records one finished table.
func (m *Metrics) ObserveResult(side chain.Side, res arb.Result) {
	s := string(side)
	m.tables.WithLabelValues(s, string(res.State)).Inc()
	m.iterations.WithLabelValues(s).Observe(float64(res.Iterations))
	for kind, n := range res.RemovedBy {
		m.removed.WithLabelValues(s, string(kind)).Add(float64(n))
	}
}

// ObserveRun records one finished batch.
func (m *Metrics) ObserveRun(arb.Report) { m.runs.Inc() }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
