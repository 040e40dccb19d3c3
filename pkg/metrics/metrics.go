// Package metrics provides Prometheus instrumentation for the
// clustering engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric collectors for a run.
type Metrics struct {
	IterationsTotal *prometheus.CounterVec
	MergesTotal     *prometheus.CounterVec
	Reassignments   *prometheus.CounterVec
	Objective       *prometheus.GaugeVec

	registry *prometheus.Registry
}

// New creates and registers all clustering metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		IterationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cabinets_iterations_total",
				Help: "Total iteration-controller cycles completed, by run.",
			},
			[]string{"run"},
		),
		MergesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cabinets_merges_total",
				Help: "Total reduce-sum merges of shard deltas into the coordinator.",
			},
			[]string{"run"},
		),
		Reassignments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cabinets_reassignments_total",
				Help: "Total documents reassigned to a different cabinet, cumulative across iterations.",
			},
			[]string{"run"},
		),
		Objective: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cabinets_objective",
				Help: "Current value of the clustering objective (sum of squared distances to assigned centroid).",
			},
			[]string{"run"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.IterationsTotal,
		m.MergesTotal,
		m.Reassignments,
		m.Objective,
	)

	return m
}

// Handler returns an http.Handler that serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordIteration records the outcome of one iteration-controller cycle:
// one merge, the number of documents reassigned, and the objective
// value observed after the reassignment step.
func (m *Metrics) RecordIteration(run string, reassigned int, objective float64) {
	m.IterationsTotal.WithLabelValues(run).Inc()
	m.MergesTotal.WithLabelValues(run).Inc()
	m.Reassignments.WithLabelValues(run).Add(float64(reassigned))
	m.Objective.WithLabelValues(run).Set(objective)
}
