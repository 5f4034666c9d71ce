package completion

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the completion sweeper.
type Metrics struct {
	// CompletedTotal counts bookings moved to COMPLETED.
	CompletedTotal prometheus.Counter

	SweepErrors prometheus.Counter

	SweepDuration prometheus.Histogram
}

// NewMetrics creates the sweeper metrics and registers them with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CompletedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bookings_completed_total",
				Help:      "Total number of confirmed bookings completed after their end time",
			},
		),

		SweepErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "completion_sweep_errors_total",
				Help:      "Total number of failed completion sweeps",
			},
		),

		SweepDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "completion_sweep_duration_seconds",
				Help:      "Time to run one completion sweep",
				Buckets:   []float64{.005, .01, .05, .1, .5, 1, 5},
			},
		),
	}
}

func (m *Metrics) addCompleted(n int) {
	if m != nil {
		m.CompletedTotal.Add(float64(n))
	}
}

func (m *Metrics) incErrors() {
	if m != nil {
		m.SweepErrors.Inc()
	}
}

func (m *Metrics) observe(seconds float64) {
	if m != nil {
		m.SweepDuration.Observe(seconds)
	}
}
