package batch

import (
	"github.com/prometheus/client_golang/prometheus"

	"plasflow/solver"
)

type Metrics struct {
	Solves     *prometheus.CounterVec
	Iterations prometheus.Histogram
	Duration   *prometheus.HistogramVec
	Backoffs   prometheus.Counter
}

// NewMetrics registers the solve metrics with reg (nil for an unregistered set).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Solves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plasflow_solves_total",
				Help: "Solves by terminal status",
			},
			[]string{"status"},
		),
		Iterations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "plasflow_newton_iterations",
				Help:    "Newton iterations per solve",
				Buckets: prometheus.LinearBuckets(0, 5, 11),
			},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plasflow_solve_duration_seconds",
				Help:    "Wall time per solve",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"status"},
		),
		Backoffs: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "plasflow_backoffs_total",
				Help: "Step backoffs after property failures",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Solves, m.Iterations, m.Duration, m.Backoffs)
	}
	return m
}

func (m *Metrics) Observe(res solver.Result) {
	if m == nil {
		return
	}
	status := res.Status.String()
	m.Solves.WithLabelValues(status).Inc()
	m.Iterations.Observe(float64(res.Diagnostics.Iterations))
	m.Duration.WithLabelValues(status).Observe(res.Diagnostics.Elapsed.Seconds())
	m.Backoffs.Add(float64(res.Diagnostics.Backoffs))
}
