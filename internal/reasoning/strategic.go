package reasoning

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"riskcast/internal/domain"
)

// TolerancePolicy bounds what a risk tolerance accepts.
type TolerancePolicy struct {
	MaxExposureShare        float64 `json:"max_exposure_share"`
	MinMitigationConfidence float64 `json:"min_mitigation_confidence"`
}

var tolerancePolicies = map[domain.RiskTolerance]TolerancePolicy{
	domain.RiskConservative: {MaxExposureShare: 0.10, MinMitigationConfidence: 0.60},
	domain.RiskModerate:     {MaxExposureShare: 0.25, MinMitigationConfidence: 0.50},
	domain.RiskAggressive:   {MaxExposureShare: 0.50, MinMitigationConfidence: 0.35},
}

// PolicyFor returns the policy of t, defaulting to moderate.
func PolicyFor(t domain.RiskTolerance) TolerancePolicy {
	if p, ok := tolerancePolicies[t]; ok {
		return p
	}
	return tolerancePolicies[domain.RiskModerate]
}

// concentrationLimit is the chokepoint share of active cargo above which the
// portfolio counts as concentrated.
const concentrationLimit = 0.6

// ChokepointShare is the fraction of active cargo value routed through a chokepoint.
type ChokepointShare struct {
	Chokepoint domain.Chokepoint `json:"chokepoint"`
	Share      float64           `json:"share"`
}

// StrategicOverride replaces the robust action.
type StrategicOverride struct {
	From   domain.ActionType `json:"from"`
	To     domain.ActionType `json:"to"`
	Reason string            `json:"reason"`
}

// StrategicInputs feed the strategic layer.
type StrategicInputs struct {
	Sources
	Factual        FactualOutput
	Temporal       TemporalOutput
	Causal         CausalOutput
	Counterfactual CounterfactualOutput
}

// StrategicOutput checks the recommendation against the customer's posture.
type StrategicOutput struct {
	LayerResult
	Tolerance            domain.RiskTolerance `json:"tolerance"`
	Policy               TolerancePolicy      `json:"policy"`
	ExposureShare        float64              `json:"exposure_share"`
	Concentration        []ChokepointShare    `json:"concentration"`
	MitigationConfidence float64              `json:"mitigation_confidence"`
	Aligned              bool                 `json:"aligned"`
	RelationshipRisk     float64              `json:"relationship_risk"`
	RelationshipImpact   string               `json:"relationship_impact"`
	LongTermImpact       string               `json:"long_term_impact"`
	Override             *StrategicOverride   `json:"override,omitempty"`
	RecommendedAction    domain.ActionType    `json:"recommended_action"`
}

// StrategicLayer aligns the recommendation with customer strategy.
type StrategicLayer interface {
	Assess(ctx context.Context, in StrategicInputs) (StrategicOutput, error)
}

type strategicLayer struct{}

// NewStrategicLayer returns the tolerance-based strategic layer.
func NewStrategicLayer() StrategicLayer {
	return strategicLayer{}
}

func (strategicLayer) Assess(_ context.Context, in StrategicInputs) (StrategicOutput, error) {
	policy := PolicyFor(in.Context.RiskTolerance)
	robust := in.Counterfactual.RobustAction
	out := StrategicOutput{
		LayerResult:       LayerResult{Layer: LayerStrategic},
		Tolerance:         in.Context.RiskTolerance,
		Policy:            policy,
		RecommendedAction: robust,
	}

	total := in.Context.ActiveCargoValueUSD()
	byChokepoint := make(map[domain.Chokepoint]float64)
	for _, sh := range in.Context.ActiveShipments() {
		for _, c := range sh.Route {
			byChokepoint[c] += sh.CargoValueUSD
		}
	}
	if total > 0 {
		for c, v := range byChokepoint {
			out.Concentration = append(out.Concentration, ChokepointShare{Chokepoint: c, Share: round(v/total, 4)})
		}
		out.ExposureShare = round(byChokepoint[in.Signal.Chokepoint]/total, 4)
	}
	slices.SortFunc(out.Concentration, func(a, b ChokepointShare) int {
		if c := cmp.Compare(b.Share, a.Share); c != 0 {
			return c
		}
		return cmp.Compare(a.Chokepoint, b.Chokepoint)
	})

	out.MitigationConfidence = Effectiveness(robust, ScenarioBase)
	if robust.Mitigating() {
		out.Aligned = out.MitigationConfidence >= policy.MinMitigationConfidence
	} else {
		out.Aligned = out.ExposureShare <= policy.MaxExposureShare
	}

	out.RelationshipRisk = round(out.ExposureShare*in.Counterfactual.AdjustedProbability, 4)
	switch {
	case out.RelationshipRisk >= 0.5:
		out.RelationshipImpact = "high"
	case out.RelationshipRisk >= 0.2:
		out.RelationshipImpact = "medium"
	default:
		out.RelationshipImpact = "low"
	}
	out.LongTermImpact = fmt.Sprintf("%.0f%% of active cargo value exposed to %s; relationship impact %s",
		out.ExposureShare*100, in.Signal.Chokepoint, out.RelationshipImpact)

	overExposed := out.ExposureShare > policy.MaxExposureShare
	if robust == domain.ActionDoNothing {
		switch {
		case in.Context.RiskTolerance == domain.RiskConservative:
			out.Override = &StrategicOverride{From: robust, To: domain.ActionMonitor,
				Reason: "conservative customers keep active watch over any exposure"}
		case overExposed:
			out.Override = &StrategicOverride{From: robust, To: domain.ActionMonitor,
				Reason: fmt.Sprintf("exposure share %.0f%% exceeds %s tolerance", out.ExposureShare*100, toleranceLabel(in.Context.RiskTolerance))}
		}
	}
	if out.Override != nil {
		out.RecommendedAction = out.Override.To
	}

	if overExposed {
		out.warn(fmt.Sprintf("exposure share %.0f%% exceeds %s limit of %.0f%%",
			out.ExposureShare*100, toleranceLabel(in.Context.RiskTolerance), policy.MaxExposureShare*100))
	}
	if len(out.Concentration) > 0 && out.Concentration[0].Share > concentrationLimit {
		out.warn(fmt.Sprintf("portfolio concentrated: %.0f%% of active cargo transits %s",
			out.Concentration[0].Share*100, out.Concentration[0].Chokepoint))
	}
	if !out.Aligned {
		out.warn(fmt.Sprintf("%s does not meet %s tolerance requirements", robust, toleranceLabel(in.Context.RiskTolerance)))
	}

	out.Confidence = 0.85
	if !out.Aligned {
		out.Confidence = 0.55
	}
	return out, nil
}

func toleranceLabel(t domain.RiskTolerance) string {
	if t == "" {
		return string(domain.RiskModerate)
	}
	return string(t)
}
