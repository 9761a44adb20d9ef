package decision

import (
	"context"
	"fmt"
	"math"

	"riskcast/internal/domain"
	"riskcast/internal/reasoning"
	"riskcast/internal/uncertainty"
)

// DelayProfile is the min/most-likely/max delay in days a disruption at a
// chokepoint adds to a voyage.
type DelayProfile struct {
	MinDays  float64
	ModeDays float64
	MaxDays  float64
}

var delayProfiles = map[domain.Chokepoint]DelayProfile{
	domain.ChokepointRedSea:      {7, 10, 14},
	domain.ChokepointSuez:        {5, 8, 12},
	domain.ChokepointHormuz:      {5, 9, 15},
	domain.ChokepointPanama:      {3, 6, 10},
	domain.ChokepointMalacca:     {2, 4, 7},
	domain.ChokepointGibraltar:   {2, 4, 6},
	domain.ChokepointBosporus:    {1, 3, 5},
	domain.ChokepointDoverStrait: {1, 2, 4},
}

var defaultDelayProfile = DelayProfile{3, 5, 9}

// ProfileFor returns the delay profile of a chokepoint.
func ProfileFor(c domain.Chokepoint) DelayProfile {
	if p, ok := delayProfiles[c]; ok {
		return p
	}
	return defaultDelayProfile
}

// Cost model constants.
const (
	HoldingRatePerDay    = 0.0015 // share of cargo value per day of delay
	ReroutePremiumPerTEU = 1500.0
	BaseFreightPerTEU    = 2000.0
)

// ImpactCalculator estimates delay and cost for matched shipments. Each
// calculation samples from an engine forked on the signal, the customer and
// the matched shipments, so concurrent calculations stay reproducible.
type ImpactCalculator struct {
	engine *uncertainty.Engine
}

// NewImpactCalculator creates a calculator sampling with engine.
func NewImpactCalculator(engine *uncertainty.Engine) *ImpactCalculator {
	return &ImpactCalculator{engine: engine}
}

// Calculate estimates the probability-weighted impact of the disruption.
func (c *ImpactCalculator) Calculate(ctx context.Context, match ExposureMatch, sig domain.Signal, obs domain.Reality) (TotalImpact, error) {
	p := reasoning.AdjustedProbability(sig.Probability, obs.Status)
	eng := c.engine.Fork(append([]string{sig.SignalID, match.CustomerID}, match.ShipmentIDs()...)...)
	profile := ProfileFor(match.Chokepoint)
	delay := eng.Triangular(profile.MinDays, profile.ModeDays, profile.MaxDays)

	out := TotalImpact{Probability: p}
	var total uncertainty.UncertainValue
	for i, s := range match.Shipments {
		si, err := shipmentImpact(ctx, eng, s, delay, obs, p)
		if err != nil {
			return TotalImpact{}, fmt.Errorf("impact for shipment %s: %w", s.ShipmentID, err)
		}
		out.Shipments = append(out.Shipments, si)
		if i == 0 {
			total = si.CostRange
			continue
		}
		if total, err = eng.Add(total, si.CostRange); err != nil {
			return TotalImpact{}, fmt.Errorf("summing impact: %w", err)
		}
	}
	if len(out.Shipments) == 0 {
		total = eng.Point(0)
	}

	out.Cost = total
	out.TotalCostUSD = math.Round(total.PointEstimate)
	out.ExpectedDelayDays = roundTo(delay.PointEstimate, 1)
	out.MinDelayDays = roundTo(delay.CI90.Low, 1)
	out.MaxDelayDays = roundTo(delay.CI90.High, 1)
	out.Severity = SeverityFor(out.TotalCostUSD)
	return out, nil
}

func shipmentImpact(ctx context.Context, eng *uncertainty.Engine, s domain.Shipment, delay uncertainty.UncertainValue, obs domain.Reality, p float64) (ShipmentImpact, error) {
	var penaltyRate, grace float64
	if s.Penalty != nil {
		penaltyRate = s.Penalty.PenaltyPerDayUSD
		grace = s.Penalty.GracePeriodDays
	}
	premium := s.TEU * ReroutePremiumPerTEU * obs.RerouteShare
	rateIncrease := s.TEU * BaseFreightPerTEU * obs.RateIncreasePct

	cost, err := uncertainty.NewCalculator(eng).Compose(ctx, map[string]uncertainty.UncertainValue{
		uncertainty.VarCargoValue:  eng.Point(s.CargoValueUSD),
		uncertainty.VarHoldingRate: eng.Point(HoldingRatePerDay),
		uncertainty.VarDelayDays:   delay,
		uncertainty.VarPenaltyRate: eng.Point(penaltyRate),
		uncertainty.VarGraceDays:   eng.Point(grace),
	}, func(v uncertainty.Variables) float64 {
		return p * (uncertainty.ExposureFormula(v) + premium + rateIncrease)
	})
	if err != nil {
		return ShipmentImpact{}, err
	}

	holding := p * s.CargoValueUSD * HoldingRatePerDay * delay.PointEstimate
	breakdown := CostBreakdown{
		HoldingUSD:        math.Round(holding),
		ReroutePremiumUSD: math.Round(p * premium),
		RateIncreaseUSD:   math.Round(p * rateIncrease),
		TotalUSD:          math.Round(cost.PointEstimate),
	}
	if penaltyRate > 0 {
		// the penalty share is whatever the joint sample adds beyond the other terms
		breakdown.PenaltyUSD = math.Max(math.Round(cost.PointEstimate-holding-p*premium-p*rateIncrease), 0)
	}

	return ShipmentImpact{
		ShipmentID:    s.ShipmentID,
		CargoValueUSD: s.CargoValueUSD,
		TEU:           s.TEU,
		Delay: DelayEstimate{
			MinDays:      roundTo(delay.CI90.Low, 1),
			ExpectedDays: roundTo(delay.PointEstimate, 1),
			MaxDays:      roundTo(delay.CI90.High, 1),
			Days:         delay,
		},
		Cost:      breakdown,
		CostRange: cost,
	}, nil
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
