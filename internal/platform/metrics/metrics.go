package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for decision attempts as a whole.
// Stage-level metrics live with the reasoning, decision and audit packages.
type Metrics struct {
	Attempts             *prometheus.CounterVec
	AttemptDuration      *prometheus.HistogramVec
	InFlight             prometheus.Gauge
	ExplanationFallbacks *prometheus.CounterVec
	ExplainerBreaker     prometheus.Gauge
	HumanInteractions    *prometheus.CounterVec
}

// New creates attempt metrics registered with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Attempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskcast_decision_attempts_total",
			Help: "Decision attempts by outcome",
		}, []string{"outcome"}),
		AttemptDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "riskcast_decision_attempt_duration_seconds",
			Help:    "End-to-end duration of a decision attempt",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"outcome"}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "riskcast_decision_attempts_in_flight",
			Help: "Decision attempts currently running",
		}),
		ExplanationFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskcast_explanation_fallbacks_total",
			Help: "Decisions explained by the deterministic template",
		}, []string{"reason"}), // reason: "error", "circuit_open", "disabled"
		ExplainerBreaker: f.NewGauge(prometheus.GaugeOpts{
			Name: "riskcast_explainer_circuit_breaker_state",
			Help: "Explainer circuit breaker state (0=closed, 1=open)",
		}),
		HumanInteractions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskcast_human_interactions_total",
			Help: "Acknowledgements, feedback and overrides recorded",
		}, []string{"event_type"}),
	}
}

func (m *Metrics) ObserveAttempt(outcome string, d time.Duration) {
	if m != nil {
		m.Attempts.WithLabelValues(outcome).Inc()
		m.AttemptDuration.WithLabelValues(outcome).Observe(d.Seconds())
	}
}

// TrackInFlight increments the in-flight gauge and returns its decrement.
func (m *Metrics) TrackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.InFlight.Inc()
	return m.InFlight.Dec
}

func (m *Metrics) IncExplanationFallback(reason string) {
	if m != nil {
		m.ExplanationFallbacks.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) SetExplainerBreaker(open bool) {
	if m == nil {
		return
	}
	if open {
		m.ExplainerBreaker.Set(1)
	} else {
		m.ExplainerBreaker.Set(0)
	}
}

func (m *Metrics) IncHumanInteraction(eventType string) {
	if m != nil {
		m.HumanInteractions.WithLabelValues(eventType).Inc()
	}
}
