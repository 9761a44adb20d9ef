package reasoning

import (
	"time"

	"riskcast/internal/domain"
	"riskcast/pkg/platform/canonical"
)

// Trace is the complete record of one reasoning pass. It is built once by
// the Engine and never modified afterwards.
type Trace struct {
	TraceID        string               `json:"trace_id"`
	ReferenceTime  time.Time            `json:"reference_time"`
	Factual        FactualOutput        `json:"factual"`
	Temporal       TemporalOutput       `json:"temporal"`
	Causal         CausalOutput         `json:"causal"`
	Counterfactual CounterfactualOutput `json:"counterfactual"`
	Strategic      StrategicOutput      `json:"strategic"`
	Meta           MetaOutput           `json:"meta"`
	Verdict        Verdict              `json:"verdict"`
	Escalation     *Escalation          `json:"escalation,omitempty"`
	LayersExecuted []LayerName          `json:"layers_executed"`
	Duration       time.Duration        `json:"duration_ns"`
}

// TraceID derives the trace identifier from the inputs alone, so the same
// signal, customer context and reference time always give the same ID.
func TraceID(sig domain.Signal, cc domain.CustomerContext, ref time.Time) (string, error) {
	return canonical.Hash(struct {
		Signal        domain.Signal          `json:"signal"`
		Context       domain.CustomerContext `json:"context"`
		ReferenceTime string                 `json:"reference_time"`
	}{sig, cc, ref.UTC().Format(time.RFC3339Nano)})
}

// Escalated reports whether the meta layer sent the trace to human review.
func (t *Trace) Escalated() bool {
	return t.Verdict == VerdictEscalate
}

// RecommendedAction is the strategic layer's final recommendation.
func (t *Trace) RecommendedAction() domain.ActionType {
	return t.Strategic.RecommendedAction
}

// Override returns the strategic override, if any.
func (t *Trace) Override() *StrategicOverride {
	return t.Strategic.Override
}

// Confidence is the meta layer's overall reasoning confidence.
func (t *Trace) Confidence() float64 {
	return t.Meta.OverallConfidence
}

// LayerResults returns the shared result of every layer in execution order.
func (t *Trace) LayerResults() []LayerResult {
	return []LayerResult{
		t.Factual.LayerResult,
		t.Temporal.LayerResult,
		t.Causal.LayerResult,
		t.Counterfactual.LayerResult,
		t.Strategic.LayerResult,
		t.Meta.LayerResult,
	}
}

// LayerTimings maps each layer to its execution time.
func (t *Trace) LayerTimings() map[LayerName]time.Duration {
	out := make(map[LayerName]time.Duration, len(Layers))
	for _, r := range t.LayerResults() {
		out[r.Layer] = r.Duration
	}
	return out
}
