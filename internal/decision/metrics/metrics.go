package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the decision pipeline.
type Metrics struct {
	// Pipeline stage latencies by stage
	StageLatency *prometheus.HistogramVec

	// Composed decisions by severity and recommended action
	DecisionOutcome *prometheus.CounterVec

	// Exposure match results
	ExposureMatches *prometheus.CounterVec
}

// New creates decision metrics registered with reg. A nil reg leaves them
// unregistered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "riskcast_decision_stage_duration_seconds",
			Help:    "Duration of decision pipeline stages",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"stage"}), // stage: "impact", "actions", "tradeoff", "compose"

		DecisionOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskcast_decision_outcomes_total",
			Help: "Total composed decisions by severity and recommended action",
		}, []string{"severity", "action"}),

		ExposureMatches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskcast_decision_exposure_matches_total",
			Help: "Exposure matching results",
		}, []string{"result"}), // result: "matched", "none"
	}
}

// ObserveStage records the duration of a pipeline stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// IncrementOutcome records a composed decision.
func (m *Metrics) IncrementOutcome(severity, action string) {
	if m != nil {
		m.DecisionOutcome.WithLabelValues(severity, action).Inc()
	}
}

// IncrementMatch records an exposure match result.
func (m *Metrics) IncrementMatch(matched bool) {
	if m != nil {
		result := "none"
		if matched {
			result = "matched"
		}
		m.ExposureMatches.WithLabelValues(result).Inc()
	}
}
