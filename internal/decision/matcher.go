package decision

import (
	"math"

	"riskcast/internal/domain"
)

// correlationWeight is how strongly reality supports acting on the signal.
var correlationWeight = map[domain.CorrelationStatus]float64{
	domain.CorrelationConfirmed:            1.0,
	domain.CorrelationSurprise:             0.9,
	domain.CorrelationMaterializing:        0.85,
	domain.CorrelationPredictedNotObserved: 0.5,
	domain.CorrelationNormal:               0.3,
}

// Matcher finds the shipments a signal affects.
type Matcher struct{}

// NewMatcher creates a Matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Match keeps active shipments that route through the signal's chokepoint
// and whose ETD..ETA window overlaps the predicted impact window.
func (m *Matcher) Match(sig domain.Signal, obs domain.Reality, cc domain.CustomerContext) ExposureMatch {
	start, end := sig.ImpactWindow()
	match := ExposureMatch{
		CustomerID: cc.CustomerID,
		SignalID:   sig.SignalID,
		Chokepoint: sig.Chokepoint,
	}
	for _, s := range cc.ActiveShipments() {
		if !s.PassesThrough(sig.Chokepoint) {
			continue
		}
		if s.ETD.After(end) || s.ETA.Before(start) {
			continue
		}
		match.Shipments = append(match.Shipments, s)
		match.TotalExposureUSD += s.CargoValueUSD
		match.TotalTEU += s.TEU
	}
	if !match.Empty() {
		w := correlationWeight[obs.Status]
		match.Confidence = math.Round((0.5*w+0.5*sig.Confidence)*1e4) / 1e4
	}
	return match
}
