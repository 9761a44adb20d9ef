package domain

import (
	"fmt"
	"time"
)

// CorrelationStatus is how ground truth compares with a signal's prediction.
type CorrelationStatus string

const (
	CorrelationConfirmed            CorrelationStatus = "confirmed"
	CorrelationMaterializing        CorrelationStatus = "materializing"
	CorrelationPredictedNotObserved CorrelationStatus = "predicted_not_observed"
	CorrelationSurprise             CorrelationStatus = "surprise"
	CorrelationNormal               CorrelationStatus = "normal"
)

// Valid reports whether s is a known status.
func (s CorrelationStatus) Valid() bool {
	switch s {
	case CorrelationConfirmed, CorrelationMaterializing, CorrelationPredictedNotObserved,
		CorrelationSurprise, CorrelationNormal:
		return true
	}
	return false
}

// Reality is a ground-truth snapshot of a chokepoint plus its correlation
// against the signal.
type Reality struct {
	Chokepoint        Chokepoint        `json:"chokepoint"`
	Status            CorrelationStatus `json:"status"`
	ObservedAt        time.Time         `json:"observed_at"`
	VesselsWaiting    int               `json:"vessels_waiting"`
	TransitDelayHours float64           `json:"transit_delay_hours"`

	// RateIncreasePct is the observed freight rate change as a fraction (0.30 = +30%).
	RateIncreasePct float64  `json:"rate_increase_pct"`
	RerouteShare    float64  `json:"reroute_share"`
	Sources         []string `json:"sources,omitempty"`
}

// Validate checks the reality snapshot at ingress.
func (r Reality) Validate() error {
	var errs ValidationErrors
	if !r.Status.Valid() {
		errs = append(errs, FieldError{Field: "reality.status", Message: fmt.Sprintf("unknown status %q", r.Status)})
	}
	if r.ObservedAt.IsZero() {
		errs = append(errs, FieldError{Field: "reality.observed_at", Message: "is required"})
	}
	if r.RateIncreasePct < 0 {
		errs = append(errs, FieldError{Field: "reality.rate_increase_pct", Message: "must not be negative"})
	}
	if r.RerouteShare < 0 || r.RerouteShare > 1 {
		errs = append(errs, FieldError{Field: "reality.reroute_share", Message: "must be in [0,1]"})
	}
	return errs.OrNil()
}
