package reminders

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the reminder sweep.
type Metrics struct {
	// RemindersSentTotal counts reminders by outcome.
	RemindersSentTotal *prometheus.CounterVec

	// SweepDuration is the time a sweep takes.
	SweepDuration prometheus.Histogram

	// RemindersCleanedUp counts removed dedup rows.
	RemindersCleanedUp prometheus.Counter
}

// NewMetrics registers reminder metrics with reg. A nil reg skips registration.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RemindersSentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminders_sent_total",
				Help:      "Total number of reminders by status",
			},
			[]string{"status"},
		),

		SweepDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reminder_sweep_duration_seconds",
				Help:      "Time to run a reminder sweep",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 60},
			},
		),

		RemindersCleanedUp: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminders_cleaned_up_total",
				Help:      "Total number of reminder records cleaned up",
			},
		),
	}
}

func (m *Metrics) IncSent(status string) {
	m.RemindersSentTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveSweep(seconds float64) {
	m.SweepDuration.Observe(seconds)
}

func (m *Metrics) IncCleanedUp(count int64) {
	m.RemindersCleanedUp.Add(float64(count))
}
