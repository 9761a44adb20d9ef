package domain

import (
	"fmt"
	"strings"
	"time"
)

// Chokepoint is a named maritime constriction through which routes pass.
type Chokepoint string

const (
	ChokepointRedSea      Chokepoint = "red_sea"
	ChokepointSuez        Chokepoint = "suez"
	ChokepointPanama      Chokepoint = "panama"
	ChokepointMalacca     Chokepoint = "malacca"
	ChokepointHormuz      Chokepoint = "hormuz"
	ChokepointGibraltar   Chokepoint = "gibraltar"
	ChokepointBosporus    Chokepoint = "bosporus"
	ChokepointDoverStrait Chokepoint = "dover_strait"
)

var knownChokepoints = map[Chokepoint]struct{}{
	ChokepointRedSea:      {},
	ChokepointSuez:        {},
	ChokepointPanama:      {},
	ChokepointMalacca:     {},
	ChokepointHormuz:      {},
	ChokepointGibraltar:   {},
	ChokepointBosporus:    {},
	ChokepointDoverStrait: {},
}

// IsKnown reports whether c is one of the tracked maritime chokepoints.
func (c Chokepoint) IsKnown() bool {
	_, ok := knownChokepoints[c]
	return ok
}

// SignalCategory classifies the predicted disruption.
type SignalCategory string

const (
	CategoryGeopolitical SignalCategory = "geopolitical"
	CategoryWeather      SignalCategory = "weather"
	CategoryCongestion   SignalCategory = "congestion"
	CategoryLabor        SignalCategory = "labor"
	CategoryOther        SignalCategory = "other"
)

// SourceType identifies where a piece of evidence came from. It drives the
// credibility rating in factual verification.
type SourceType string

const (
	SourceSignal   SourceType = "signal"
	SourceAIS      SourceType = "ais"
	SourceCustomer SourceType = "customer"
	SourceNews     SourceType = "news"
	SourceMarket   SourceType = "market"
	SourceSocial   SourceType = "social"
)

// Evidence is one item backing a signal's prediction.
type Evidence struct {
	Source      string     `json:"source"`
	SourceType  SourceType `json:"source_type"`
	Description string     `json:"description"`
	ObservedAt  time.Time  `json:"observed_at"`
}

// Signal is a predictive claim about a future disruption.
type Signal struct {
	SignalID   string         `json:"signal_id"`
	Title      string         `json:"title"`
	Category   SignalCategory `json:"category"`
	Chokepoint Chokepoint     `json:"chokepoint"`
	// Probability that the disruption materializes, in [0,1].
	Probability float64 `json:"probability"`
	// Confidence is the upstream data-quality score of the prediction, in [0,1].
	Confidence float64 `json:"confidence"`

	Evidence    []Evidence `json:"evidence,omitempty"`
	Regions     []string   `json:"regions,omitempty"`
	DetectedAt  time.Time  `json:"detected_at"`
	ImpactStart time.Time  `json:"impact_start"`
	ImpactEnd   time.Time  `json:"impact_end"`
}

// Validate checks the signal once at ingress so layers can rely on its shape.
func (s Signal) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(s.SignalID) == "" {
		errs = append(errs, FieldError{Field: "signal.signal_id", Message: "is required"})
	}
	if s.Chokepoint == "" {
		errs = append(errs, FieldError{Field: "signal.chokepoint", Message: "is required"})
	}
	if !inUnit(s.Probability) {
		errs = append(errs, FieldError{Field: "signal.probability", Message: fmt.Sprintf("must be in [0,1], got %v", s.Probability)})
	}
	if !inUnit(s.Confidence) {
		errs = append(errs, FieldError{Field: "signal.confidence", Message: fmt.Sprintf("must be in [0,1], got %v", s.Confidence)})
	}
	if s.ImpactStart.IsZero() {
		errs = append(errs, FieldError{Field: "signal.impact_start", Message: "is required"})
	}
	if !s.ImpactEnd.IsZero() && s.ImpactEnd.Before(s.ImpactStart) {
		errs = append(errs, FieldError{Field: "signal.impact_end", Message: "must not precede impact_start"})
	}
	return errs.OrNil()
}

// ImpactWindow returns the predicted impact window. An open-ended signal is
// treated as lasting thirty days.
func (s Signal) ImpactWindow() (time.Time, time.Time) {
	end := s.ImpactEnd
	if end.IsZero() {
		end = s.ImpactStart.Add(30 * 24 * time.Hour)
	}
	return s.ImpactStart, end
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}
