package txpipe

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the pipeline's prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	Renderings          *prometheus.CounterVec
	Failures            *prometheus.CounterVec
	PollAttempts        prometheus.Counter
	ConfirmationSeconds prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Renderings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletkit_tx_renderings_total",
				Help: "Total number of pipeline renderings emitted, by phase.",
			},
			[]string{"phase"},
		),
		Failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletkit_tx_failures_total",
				Help: "Total number of failed transactions, by reason.",
			},
			[]string{"reason"},
		),
		PollAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "walletkit_tx_poll_attempts_total",
			Help: "Total number of inclusion queries issued.",
		}),
		ConfirmationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "walletkit_tx_confirmation_seconds",
			Help:    "Time from broadcast to observed inclusion.",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 80},
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Renderings, m.Failures, m.PollAttempts, m.ConfirmationSeconds)
	}
	return m
}

func (m *Metrics) rendering(r Rendering) {
	if m == nil {
		return
	}
	m.Renderings.WithLabelValues(string(r.Phase)).Inc()
	if r.Phase == PhaseFail && r.Err != nil {
		m.Failures.WithLabelValues(string(r.Err.Reason)).Inc()
	}
}

func (m *Metrics) pollAttempt() {
	if m == nil {
		return
	}
	m.PollAttempts.Inc()
}

func (m *Metrics) confirmed(d time.Duration) {
	if m == nil {
		return
	}
	m.ConfirmationSeconds.Observe(d.Seconds())
}
