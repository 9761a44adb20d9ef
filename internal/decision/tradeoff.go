package decision

import (
	"fmt"
	"math"
	"slices"
	"time"

	"riskcast/internal/domain"
	"riskcast/internal/reasoning"
)

// TradeOffAnalyzer weighs acting now against waiting.
type TradeOffAnalyzer struct{}

// NewTradeOffAnalyzer creates a TradeOffAnalyzer.
func NewTradeOffAnalyzer() *TradeOffAnalyzer {
	return &TradeOffAnalyzer{}
}

// EscalationPerDay is how fast the cost of inaction grows per day waited:
// options close and freight rates climb with observed rate pressure.
func EscalationPerDay(obs domain.Reality) float64 {
	return 0.05 + 0.25*obs.RateIncreasePct
}

// ClassifyUrgency buckets the time left before the point of no return.
func ClassifyUrgency(remaining time.Duration) UrgencyBucket {
	switch {
	case remaining <= 6*time.Hour:
		return UrgencyImmediate
	case remaining <= 48*time.Hour:
		return UrgencyHours
	case remaining <= 14*24*time.Hour:
		return UrgencyDays
	default:
		return UrgencyWeeks
	}
}

// Analyze projects inaction cost and picks the recommended action. A
// strategic override on trace replaces the top-ranked action. trace may be nil.
func (a *TradeOffAnalyzer) Analyze(impact TotalImpact, actions ActionSet, obs domain.Reality, trace *reasoning.Trace, ref time.Time) TradeOffAnalysis {
	var out TradeOffAnalysis

	rate := EscalationPerDay(obs)
	for _, h := range Checkpoints {
		cost := impact.TotalCostUSD * (1 + rate*float64(h)/24)
		out.InactionCosts = append(out.InactionCosts, InactionCost{Hours: h, CostUSD: math.Round(cost*100) / 100})
	}

	recommended := actions.Primary
	out.Reason = fmt.Sprintf("%s has the highest utility: $%.0f of expected loss mitigated for $%.0f",
		recommended.Type, recommended.MitigatedUSD, recommended.CostUSD)
	if trace != nil {
		if o := trace.Override(); o != nil && o.To != recommended.Type {
			if overridden, ok := actions.Find(o.To); ok {
				recommended = overridden
				out.Overridden = true
				out.Reason = "strategic override: " + o.Reason
			}
		}
	}
	out.RecommendedAction = recommended.Type

	if trace != nil {
		out.Deadlines = append(out.Deadlines, Deadline{Label: "decision deadline", At: trace.Temporal.DecisionDeadline})
	}
	var latestMitigation time.Time
	for _, act := range actions.Actions {
		if act.Deadline.IsZero() {
			continue
		}
		out.Deadlines = append(out.Deadlines, Deadline{Label: string(act.Type) + " deadline", At: act.Deadline})
		if act.Type.Mitigating() && act.Feasibility > 0 && act.Deadline.After(latestMitigation) {
			latestMitigation = act.Deadline
		}
	}
	slices.SortStableFunc(out.Deadlines, func(x, y Deadline) int { return x.At.Compare(y.At) })

	switch {
	case !recommended.Deadline.IsZero():
		out.PointOfNoReturn = recommended.Deadline
	case !latestMitigation.IsZero():
		out.PointOfNoReturn = latestMitigation
	default:
		out.PointOfNoReturn = ref.Add(48 * time.Hour)
	}
	out.Urgency = ClassifyUrgency(out.PointOfNoReturn.Sub(ref))

	if wait := out.CostAt(24) - out.CostAt(0); wait > 0 {
		out.Reason += fmt.Sprintf("; waiting 24h adds $%.0f", wait)
	}
	return out
}
