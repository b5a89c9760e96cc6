package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors exported on /metrics.
type Metrics struct {
	DispatchOutcomes *prometheus.CounterVec
	Jobs             *prometheus.CounterVec
	Online           prometheus.Gauge
	Sessions         *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DispatchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifier_dispatch_outcomes_total",
			Help: "Per-recipient dispatch outcomes.",
		}, []string{"outcome"}),
		Jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifier_jobs_total",
			Help: "Queue jobs handled by the worker pool, by result.",
		}, []string{"result"}),
		Online: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notifier_presence_online",
			Help: "Recipients with a registered push channel.",
		}),
		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifier_ws_sessions_total",
			Help: "Push channel sessions, by how they ended.",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.DispatchOutcomes, m.Jobs, m.Online, m.Sessions)

	return m
}

// SetOnline is the presence registry change hook.
func (m *Metrics) SetOnline(n int) {
	if m == nil {
		return
	}

	m.Online.Set(float64(n))
}

func (m *Metrics) Outcome(outcome string) {
	if m == nil {
		return
	}

	m.DispatchOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Job(result string) {
	if m == nil {
		return
	}

	m.Jobs.WithLabelValues(result).Inc()
}

func (m *Metrics) SessionClosed(reason string) {
	if m == nil {
		return
	}

	m.Sessions.WithLabelValues(reason).Inc()
}
