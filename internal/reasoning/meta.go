package reasoning

import (
	"context"
	"fmt"
	"strings"
)

// Verdict is the meta layer's final call.
type Verdict string

const (
	VerdictProceed  Verdict = "proceed"
	VerdictEscalate Verdict = "escalate"
)

// Trigger names the first threshold a trace failed.
type Trigger string

const (
	TriggerLowDataQuality  Trigger = "LOW_DATA_QUALITY"
	TriggerLowConfidence   Trigger = "LOW_CONFIDENCE"
	TriggerQualityWarnings Trigger = "QUALITY_WARNINGS"
	TriggerLowRobustness   Trigger = "LOW_ROBUSTNESS"
	TriggerCustomerFlag    Trigger = "CUSTOMER_FLAG"
)

var reviewers = map[Trigger][]string{
	TriggerLowDataQuality:  {"data_quality_analyst"},
	TriggerLowConfidence:   {"risk_analyst"},
	TriggerQualityWarnings: {"risk_analyst", "data_quality_analyst"},
	TriggerLowRobustness:   {"senior_risk_analyst"},
	TriggerCustomerFlag:    {"account_manager"},
}

// Escalation routes a trace to human review.
type Escalation struct {
	Trigger   Trigger  `json:"trigger"`
	Reason    string   `json:"reason"`
	Urgency   Urgency  `json:"urgency"`
	Reviewers []string `json:"reviewers"`
}

// LayerScore is one layer's confidence as seen by the meta layer.
type LayerScore struct {
	Layer      LayerName `json:"layer"`
	Confidence float64   `json:"confidence"`
	Warnings   int       `json:"warnings"`
}

// MetaInputs feed the meta layer.
type MetaInputs struct {
	Sources
	Factual        FactualOutput
	Temporal       TemporalOutput
	Causal         CausalOutput
	Counterfactual CounterfactualOutput
	Strategic      StrategicOutput
}

// MetaOutput judges the quality of the reasoning itself.
type MetaOutput struct {
	LayerResult
	Scores            []LayerScore `json:"scores"`
	OverallConfidence float64      `json:"overall_confidence"`
	ReasoningQuality  float64      `json:"reasoning_quality"`
	TotalWarnings     int          `json:"total_warnings"`
	Thresholds        Thresholds   `json:"thresholds"`
	Verdict           Verdict      `json:"verdict"`
	Escalation        *Escalation  `json:"escalation,omitempty"`
}

// MetaLayer decides whether the reasoning is trustworthy.
type MetaLayer interface {
	Judge(ctx context.Context, in MetaInputs) (MetaOutput, error)
}

type metaLayer struct {
	thresholds ThresholdProvider
}

// NewMetaLayer returns a meta layer applying thresholds from provider.
func NewMetaLayer(provider ThresholdProvider) MetaLayer {
	if provider == nil {
		provider = StaticThresholds(DefaultThresholds())
	}
	return metaLayer{thresholds: provider}
}

func (l metaLayer) Judge(_ context.Context, in MetaInputs) (MetaOutput, error) {
	th := l.thresholds.ThresholdsFor(in.Context.CustomerID)
	out := MetaOutput{
		LayerResult: LayerResult{Layer: LayerMeta},
		Thresholds:  th,
	}

	var sum float64
	for _, r := range []LayerResult{
		in.Factual.LayerResult,
		in.Temporal.LayerResult,
		in.Causal.LayerResult,
		in.Counterfactual.LayerResult,
		in.Strategic.LayerResult,
	} {
		out.Scores = append(out.Scores, LayerScore{Layer: r.Layer, Confidence: r.Confidence, Warnings: len(r.Warnings)})
		sum += r.Confidence
		out.TotalWarnings += len(r.Warnings)
	}
	out.OverallConfidence = round(sum/float64(len(out.Scores)), 4)
	out.ReasoningQuality = round(clamp01(out.OverallConfidence-0.02*float64(out.TotalWarnings)), 4)
	out.Confidence = out.OverallConfidence

	dq := in.Factual.DataQualityScore
	robustness := in.Counterfactual.Robustness
	var trigger Trigger
	var reason string
	switch {
	case dq < th.MinDataQuality:
		trigger = TriggerLowDataQuality
		reason = fmt.Sprintf("data quality %.2f is below %.2f", dq, th.MinDataQuality)
		if len(in.Factual.DataGaps) > 0 {
			reason += "; gaps: " + strings.Join(in.Factual.DataGaps, ", ")
		}
	case out.OverallConfidence < th.MinConfidence:
		trigger = TriggerLowConfidence
		reason = fmt.Sprintf("overall reasoning confidence %.2f is below %.2f", out.OverallConfidence, th.MinConfidence)
	case out.TotalWarnings > th.MaxWarnings:
		trigger = TriggerQualityWarnings
		reason = fmt.Sprintf("%d reasoning warnings exceed the limit of %d", out.TotalWarnings, th.MaxWarnings)
	case robustness < th.MinRobustness:
		trigger = TriggerLowRobustness
		reason = fmt.Sprintf("robustness of %s is %.2f, below %.2f", in.Counterfactual.RobustAction, robustness, th.MinRobustness)
	case in.Context.RequiresHumanReview:
		trigger = TriggerCustomerFlag
		reason = fmt.Sprintf("customer %s requires human review of every decision", in.Context.CustomerID)
	}

	if trigger == "" {
		out.Verdict = VerdictProceed
		return out, nil
	}

	out.Verdict = VerdictEscalate
	urgency := in.Temporal.Urgency
	if urgency == "" {
		urgency = UrgencyWatch
	}
	who := append([]string(nil), reviewers[trigger]...)
	if urgency == UrgencyImmediate {
		who = append(who, "operations_manager")
	}
	out.Escalation = &Escalation{Trigger: trigger, Reason: reason, Urgency: urgency, Reviewers: who}
	out.warn("escalated: " + reason)
	return out, nil
}
