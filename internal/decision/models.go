package decision

import (
	"time"

	"riskcast/internal/domain"
	"riskcast/internal/uncertainty"
)

// Severity grades the total expected cost of a disruption.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// SeverityFor grades a USD cost.
func SeverityFor(usd float64) Severity {
	switch {
	case usd < 5_000:
		return SeverityLow
	case usd < 25_000:
		return SeverityMedium
	case usd < 100_000:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// ExposureMatch is the subset of a customer's shipments a signal affects.
type ExposureMatch struct {
	CustomerID       string            `json:"customer_id"`
	SignalID         string            `json:"signal_id"`
	Chokepoint       domain.Chokepoint `json:"chokepoint"`
	Shipments        []domain.Shipment `json:"shipments"`
	TotalExposureUSD float64           `json:"total_exposure_usd"`
	TotalTEU         float64           `json:"total_teu"`
	Confidence       float64           `json:"confidence"`
}

// Empty reports whether no shipment is affected.
func (m ExposureMatch) Empty() bool {
	return len(m.Shipments) == 0
}

// ShipmentIDs lists the affected shipments.
func (m ExposureMatch) ShipmentIDs() []string {
	ids := make([]string, len(m.Shipments))
	for i, s := range m.Shipments {
		ids[i] = s.ShipmentID
	}
	return ids
}

// DelayEstimate is the expected delay range in days.
type DelayEstimate struct {
	MinDays      float64                    `json:"min_days"`
	ExpectedDays float64                    `json:"expected_days"`
	MaxDays      float64                    `json:"max_days"`
	Days         uncertainty.UncertainValue `json:"days"`
}

// CostBreakdown splits a shipment's expected cost by driver. All amounts are
// already weighted by the disruption probability.
type CostBreakdown struct {
	HoldingUSD        float64 `json:"holding_usd"`
	ReroutePremiumUSD float64 `json:"reroute_premium_usd"`
	RateIncreaseUSD   float64 `json:"rate_increase_usd"`
	PenaltyUSD        float64 `json:"penalty_usd"`
	TotalUSD          float64 `json:"total_usd"`
}

// ShipmentImpact is the impact on one affected shipment.
type ShipmentImpact struct {
	ShipmentID    string                     `json:"shipment_id"`
	CargoValueUSD float64                    `json:"cargo_value_usd"`
	TEU           float64                    `json:"teu"`
	Delay         DelayEstimate              `json:"delay"`
	Cost          CostBreakdown              `json:"cost"`
	CostRange     uncertainty.UncertainValue `json:"cost_range"`
}

// TotalImpact aggregates impact across affected shipments.
type TotalImpact struct {
	Shipments         []ShipmentImpact           `json:"shipments"`
	Probability       float64                    `json:"probability"`
	TotalCostUSD      float64                    `json:"total_cost_usd"`
	Cost              uncertainty.UncertainValue `json:"cost"`
	ExpectedDelayDays float64                    `json:"expected_delay_days"`
	MinDelayDays      float64                    `json:"min_delay_days"`
	MaxDelayDays      float64                    `json:"max_delay_days"`
	Severity          Severity                   `json:"severity"`
}

// Action is one costed mitigation option.
type Action struct {
	Type         domain.ActionType `json:"type"`
	Description  string            `json:"description"`
	CostUSD      float64           `json:"cost_usd"`
	MitigatedUSD float64           `json:"mitigated_usd"`
	NetBenefit   float64           `json:"net_benefit_usd"`
	Feasibility  float64           `json:"feasibility"`
	Deadline     time.Time         `json:"deadline,omitzero"`
	Utility      float64           `json:"utility"`
}

// ActionSet holds every candidate ranked by utility.
type ActionSet struct {
	Actions      []Action `json:"actions"`
	Primary      Action   `json:"primary"`
	Alternatives []Action `json:"alternatives"`
}

// Find returns the candidate of type t.
func (s ActionSet) Find(t domain.ActionType) (Action, bool) {
	for _, a := range s.Actions {
		if a.Type == t {
			return a, true
		}
	}
	return Action{}, false
}

// UrgencyBucket is how soon the recommended action must start.
type UrgencyBucket string

const (
	UrgencyImmediate UrgencyBucket = "IMMEDIATE"
	UrgencyHours     UrgencyBucket = "HOURS"
	UrgencyDays      UrgencyBucket = "DAYS"
	UrgencyWeeks     UrgencyBucket = "WEEKS"
)

// Checkpoints are the hours at which inaction cost is projected.
var Checkpoints = []int{0, 6, 24, 48}

// InactionCost is the projected cost of waiting until a checkpoint.
type InactionCost struct {
	Hours   int     `json:"hours"`
	CostUSD float64 `json:"cost_usd"`
}

// Deadline is a named point in time.
type Deadline struct {
	Label string    `json:"label"`
	At    time.Time `json:"at"`
}

// TradeOffAnalysis weighs acting now against waiting.
type TradeOffAnalysis struct {
	InactionCosts     []InactionCost    `json:"inaction_costs"`
	Deadlines         []Deadline        `json:"deadlines"`
	PointOfNoReturn   time.Time         `json:"point_of_no_return"`
	RecommendedAction domain.ActionType `json:"recommended_action"`
	Reason            string            `json:"reason"`
	Urgency           UrgencyBucket     `json:"urgency"`
	Overridden        bool              `json:"overridden"`
}

// CostAt returns the inaction cost at a checkpoint.
func (t TradeOffAnalysis) CostAt(hours int) float64 {
	for _, c := range t.InactionCosts {
		if c.Hours == hours {
			return c.CostUSD
		}
	}
	return 0
}
