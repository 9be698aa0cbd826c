package infra

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics agrupa os contadores Prometheus do subsistema de admissão.
type Metrics struct {
	Admissions    *prometheus.CounterVec
	StoreFailures prometheus.Counter
	CostUnits     *prometheus.CounterVec
}

// NewMetrics registra os contadores no Registerer dado (nil usa o default).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		Admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admission_decisions_total",
			Help: "Admission verdicts by limiter and outcome.",
		}, []string{"limiter", "outcome"}),
		StoreFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "admission_store_failures_total",
			Help: "Window store failures (fail-open/fail-closed events).",
		}),
		CostUnits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admission_cost_units_total",
			Help: "Recorded cost units (tokens) by feature.",
		}, []string{"feature"}),
	}
	reg.MustRegister(m.Admissions, m.StoreFailures, m.CostUnits)
	return m
}
