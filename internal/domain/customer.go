package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// RiskTolerance is the customer's declared appetite for unmitigated exposure.
type RiskTolerance string

const (
	RiskConservative RiskTolerance = "conservative"
	RiskModerate     RiskTolerance = "moderate"
	RiskAggressive   RiskTolerance = "aggressive"
)

// Valid reports whether t is a known tolerance.
func (t RiskTolerance) Valid() bool {
	switch t {
	case RiskConservative, RiskModerate, RiskAggressive:
		return true
	}
	return false
}

// ShipmentStatus is the lifecycle state of a shipment.
type ShipmentStatus string

const (
	ShipmentBooked    ShipmentStatus = "booked"
	ShipmentInTransit ShipmentStatus = "in_transit"
	ShipmentAtPort    ShipmentStatus = "at_port"
	ShipmentDelivered ShipmentStatus = "delivered"
	ShipmentCancelled ShipmentStatus = "cancelled"
)

// Actionable reports whether anything can still be done about a shipment.
func (s ShipmentStatus) Actionable() bool {
	switch s {
	case ShipmentBooked, ShipmentInTransit, ShipmentAtPort:
		return true
	}
	return false
}

// PenaltyTerms are contractual late-delivery penalties.
type PenaltyTerms struct {
	PenaltyPerDayUSD float64 `json:"penalty_per_day_usd"`
	GracePeriodDays  float64 `json:"grace_period_days"`
}

// Shipment is one active customer shipment.
type Shipment struct {
	ShipmentID    string         `json:"shipment_id"`
	Origin        string         `json:"origin"`
	Destination   string         `json:"destination"`
	Route         []Chokepoint   `json:"route_chokepoints"`
	CargoValueUSD float64        `json:"cargo_value_usd"`
	TEU           float64        `json:"teu"`
	ETD           time.Time      `json:"etd"`
	ETA           time.Time      `json:"eta"`
	Status        ShipmentStatus `json:"status"`
	Carrier       string         `json:"carrier,omitempty"`
	Penalty       *PenaltyTerms  `json:"penalty,omitempty"`
}

// PassesThrough reports whether the route includes c.
func (s Shipment) PassesThrough(c Chokepoint) bool {
	return slices.Contains(s.Route, c)
}

// HasDeparted reports whether the shipment already left origin at ref.
func (s Shipment) HasDeparted(ref time.Time) bool {
	if s.Status == ShipmentInTransit || s.Status == ShipmentAtPort {
		return true
	}
	return !s.ETD.After(ref)
}

// CustomerContext is everything known about the customer at decision time.
type CustomerContext struct {
	CustomerID    string        `json:"customer_id"`
	CompanyName   string        `json:"company_name"`
	RiskTolerance RiskTolerance `json:"risk_tolerance"`
	Shipments     []Shipment    `json:"shipments"`
	// RequiresHumanReview forces escalation regardless of reasoning quality.
	RequiresHumanReview bool `json:"requires_human_review,omitempty"`
}

// ActiveShipments returns shipments that are still actionable.
func (c CustomerContext) ActiveShipments() []Shipment {
	out := make([]Shipment, 0, len(c.Shipments))
	for _, s := range c.Shipments {
		if s.Status.Actionable() {
			out = append(out, s)
		}
	}
	return out
}

// ActiveCargoValueUSD sums cargo value across active shipments.
func (c CustomerContext) ActiveCargoValueUSD() float64 {
	var total float64
	for _, s := range c.ActiveShipments() {
		total += s.CargoValueUSD
	}
	return total
}

// Validate checks the customer context at ingress.
func (c CustomerContext) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(c.CustomerID) == "" {
		errs = append(errs, FieldError{Field: "context.customer_id", Message: "is required"})
	}
	if !c.RiskTolerance.Valid() {
		errs = append(errs, FieldError{Field: "context.risk_tolerance", Message: fmt.Sprintf("unknown tolerance %q", c.RiskTolerance)})
	}
	seen := make(map[string]struct{}, len(c.Shipments))
	for i, s := range c.Shipments {
		prefix := fmt.Sprintf("context.shipments[%d]", i)
		if s.ShipmentID == "" {
			errs = append(errs, FieldError{Field: prefix + ".shipment_id", Message: "is required"})
		} else if _, dup := seen[s.ShipmentID]; dup {
			errs = append(errs, FieldError{Field: prefix + ".shipment_id", Message: "is duplicated"})
		}
		seen[s.ShipmentID] = struct{}{}
		if s.CargoValueUSD < 0 {
			errs = append(errs, FieldError{Field: prefix + ".cargo_value_usd", Message: "must not be negative"})
		}
		if s.TEU < 0 {
			errs = append(errs, FieldError{Field: prefix + ".teu", Message: "must not be negative"})
		}
		if s.ETD.IsZero() || s.ETA.IsZero() {
			errs = append(errs, FieldError{Field: prefix, Message: "etd and eta are required"})
		} else if s.ETA.Before(s.ETD) {
			errs = append(errs, FieldError{Field: prefix + ".eta", Message: "must not precede etd"})
		}
		if s.Penalty != nil && (s.Penalty.PenaltyPerDayUSD < 0 || s.Penalty.GracePeriodDays < 0) {
			errs = append(errs, FieldError{Field: prefix + ".penalty", Message: "must not be negative"})
		}
	}
	return errs.OrNil()
}
