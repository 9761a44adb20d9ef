package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the reasoning engine.
type Metrics struct {
	// Per-layer execution latency
	LayerLatency *prometheus.HistogramVec

	// Layer failures that aborted a trace
	LayerFailures *prometheus.CounterVec

	// Final verdicts by trigger ("none" when proceeding)
	Verdicts *prometheus.CounterVec
}

// New creates reasoning metrics registered with reg. A nil reg leaves them
// unregistered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LayerLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "riskcast_reasoning_layer_duration_seconds",
			Help:    "Duration of each reasoning layer",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"layer"}),

		LayerFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskcast_reasoning_layer_failures_total",
			Help: "Reasoning layers that failed and aborted the trace",
		}, []string{"layer"}),

		Verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskcast_reasoning_verdicts_total",
			Help: "Meta layer verdicts by escalation trigger",
		}, []string{"verdict", "trigger"}),
	}
}

// ObserveLayer records how long a layer took.
func (m *Metrics) ObserveLayer(layer string, d time.Duration) {
	if m != nil {
		m.LayerLatency.WithLabelValues(layer).Observe(d.Seconds())
	}
}

// IncrementLayerFailure records an aborted trace.
func (m *Metrics) IncrementLayerFailure(layer string) {
	if m != nil {
		m.LayerFailures.WithLabelValues(layer).Inc()
	}
}

// IncrementVerdict records a completed trace.
func (m *Metrics) IncrementVerdict(verdict, trigger string) {
	if m != nil {
		if trigger == "" {
			trigger = "none"
		}
		m.Verdicts.WithLabelValues(verdict, trigger).Inc()
	}
}
