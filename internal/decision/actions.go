package decision

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"riskcast/internal/domain"
	"riskcast/internal/reasoning"
)

// Action model constants.
const (
	RerouteCostPerTEU = 1200.0
	DelayHoldDays     = 7.0
	InsurancePremium  = 0.005 // share of cargo value

	rerouteMitigation = 0.80
	delayMitigation   = 0.45
	insureMitigation  = 0.50
	monitorMitigation = 0.05
)

// ActionGenerator produces the ranked candidate actions.
type ActionGenerator struct{}

// NewActionGenerator creates an ActionGenerator.
func NewActionGenerator() *ActionGenerator {
	return &ActionGenerator{}
}

// Generate returns DO_NOTHING plus every mitigation, ranked by utility.
// Ties go to the cheaper action, then domain.ActionTypes order.
func (g *ActionGenerator) Generate(match ExposureMatch, impact TotalImpact, ref time.Time) ActionSet {
	earliest, undeparted := earliestDeparture(match.Shipments, ref)
	deadline := func(action domain.ActionType) time.Time {
		if !undeparted {
			return ref
		}
		return earliest.Add(-reasoning.LeadTimes[action])
	}
	open := func(d time.Time) bool { return d.After(ref) }

	total := impact.TotalCostUSD
	actions := make([]Action, 0, len(domain.ActionTypes))

	rerouteDeadline := deadline(domain.ActionReroute)
	rerouteFeasibility := 0.3
	if open(rerouteDeadline) {
		rerouteFeasibility = 0.9
	}
	actions = append(actions, g.action(domain.ActionReroute,
		fmt.Sprintf("Reroute %d shipment(s) away from %s", len(match.Shipments), match.Chokepoint),
		match.TotalTEU*RerouteCostPerTEU, total*rerouteMitigation, rerouteFeasibility, rerouteDeadline, total))

	delayDeadline := deadline(domain.ActionDelay)
	var delayFeasibility float64
	if undeparted {
		delayFeasibility = 0.3
		if open(delayDeadline) {
			delayFeasibility = 0.8
		}
	}
	actions = append(actions, g.action(domain.ActionDelay,
		fmt.Sprintf("Hold departures %.0f days until %s transits stabilise", DelayHoldDays, match.Chokepoint),
		match.TotalExposureUSD*HoldingRatePerDay*DelayHoldDays, total*delayMitigation, delayFeasibility, delayDeadline, total))

	insureDeadline := deadline(domain.ActionInsure)
	insureFeasibility := 0.5
	if open(insureDeadline) {
		insureFeasibility = 0.95
	}
	actions = append(actions, g.action(domain.ActionInsure,
		fmt.Sprintf("Extend cargo insurance over $%.0f of exposed cargo", match.TotalExposureUSD),
		match.TotalExposureUSD*InsurancePremium, total*insureMitigation, insureFeasibility, insureDeadline, total))

	actions = append(actions, g.action(domain.ActionMonitor,
		fmt.Sprintf("Monitor %s daily and re-evaluate", match.Chokepoint),
		0, total*monitorMitigation, 1, time.Time{}, total))

	actions = append(actions, Action{
		Type:        domain.ActionDoNothing,
		Description: "Accept the exposure and take no action",
		Feasibility: 1,
	})

	slices.SortStableFunc(actions, func(a, b Action) int {
		if c := cmp.Compare(b.Utility, a.Utility); c != 0 {
			return c
		}
		return cmp.Compare(a.CostUSD, b.CostUSD)
	})
	return ActionSet{
		Actions:      actions,
		Primary:      actions[0],
		Alternatives: slices.Clone(actions[1:]),
	}
}

// action fills in the derived fields. Utility is net benefit relative to the
// total impact, scaled by feasibility.
func (g *ActionGenerator) action(t domain.ActionType, desc string, cost, mitigated, feasibility float64, deadline time.Time, total float64) Action {
	a := Action{
		Type:         t,
		Description:  desc,
		CostUSD:      math.Round(cost),
		MitigatedUSD: math.Round(mitigated),
		Feasibility:  feasibility,
		Deadline:     deadline,
	}
	a.NetBenefit = a.MitigatedUSD - a.CostUSD
	if total > 0 {
		a.Utility = roundTo(a.NetBenefit/total*feasibility, 4)
	}
	return a
}

// earliestDeparture returns the earliest ETD among shipments still at origin.
func earliestDeparture(shipments []domain.Shipment, ref time.Time) (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, s := range shipments {
		if s.HasDeparted(ref) {
			continue
		}
		if !found || s.ETD.Before(earliest) {
			earliest = s.ETD
			found = true
		}
	}
	return earliest, found
}
