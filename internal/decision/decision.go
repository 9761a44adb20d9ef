package decision

import (
	"fmt"
	"time"

	"riskcast/internal/domain"
	"riskcast/internal/uncertainty"
	"riskcast/pkg/platform/sentinel"
)

// WhatIsHappening answers Q1.
type WhatIsHappening struct {
	Summary           string                `json:"summary"`
	Chokepoint        domain.Chokepoint     `json:"chokepoint"`
	Category          domain.SignalCategory `json:"category"`
	AffectedShipments []string              `json:"affected_shipments"`
}

// When answers Q2.
type When struct {
	ImpactStart      time.Time     `json:"impact_start"`
	DecisionDeadline time.Time     `json:"decision_deadline"`
	PointOfNoReturn  time.Time     `json:"point_of_no_return"`
	Urgency          UrgencyBucket `json:"urgency"`
}

// HowSevere answers Q3.
type HowSevere struct {
	Severity          Severity             `json:"severity"`
	TotalCostUSD      float64              `json:"total_cost_usd"`
	CostCI90          uncertainty.Interval `json:"cost_ci_90"`
	ExposureUSD       float64              `json:"exposure_usd"`
	ShipmentsAffected int                  `json:"shipments_affected"`
	ExpectedDelayDays float64              `json:"expected_delay_days"`
	DelayRangeDays    uncertainty.Interval `json:"delay_range_days"`
}

// Why answers Q4.
type Why struct {
	Summary     string   `json:"summary"`
	CausalChain []string `json:"causal_chain"`
	Evidence    []string `json:"evidence"`
}

// WhatToDo answers Q5.
type WhatToDo struct {
	Primary      Action   `json:"primary"`
	Alternatives []Action `json:"alternatives"`
	Reason       string   `json:"reason"`
}

// HowConfident answers Q6.
type HowConfident struct {
	Score   float64  `json:"score"`
	Level   string   `json:"level"`
	Factors []string `json:"factors"`
}

// CostOfInaction answers Q7.
type CostOfInaction struct {
	NowUSD  float64 `json:"now_usd"`
	In6hUSD float64 `json:"in_6h_usd"`
	In24USD float64 `json:"in_24h_usd"`
	In48USD float64 `json:"in_48h_usd"`
	Message string  `json:"message"`
}

// Acknowledgement records that a customer saw the decision.
type Acknowledgement struct {
	By string    `json:"by"`
	At time.Time `json:"at"`
}

// Feedback records what the customer actually did.
type Feedback struct {
	ActionTaken domain.ActionType `json:"action_taken"`
	Helpful     bool              `json:"helpful"`
	Comment     string            `json:"comment,omitempty"`
	ActualCost  float64           `json:"actual_cost_usd,omitempty"`
	RecordedAt  time.Time         `json:"recorded_at"`
}

// DecisionObject is the seven-question answer for one customer and signal.
// Everything but Acknowledgement and Feedback is fixed at creation.
type DecisionObject struct {
	DecisionID    string          `json:"decision_id"`
	CustomerID    string          `json:"customer_id"`
	SignalID      string          `json:"signal_id"`
	TraceID       string          `json:"trace_id,omitempty"`
	Q1What        WhatIsHappening `json:"q1_what"`
	Q2When        When            `json:"q2_when"`
	Q3Severity    HowSevere       `json:"q3_severity"`
	Q4Why         Why             `json:"q4_why"`
	Q5Action      WhatToDo        `json:"q5_action"`
	Q6Confidence  HowConfident    `json:"q6_confidence"`
	Q7Inaction    CostOfInaction  `json:"q7_inaction"`
	Explanation   string          `json:"explanation,omitempty"`
	ReferenceTime time.Time       `json:"reference_time"`
	CreatedAt     time.Time       `json:"created_at"`
	ExpiresAt     time.Time       `json:"expires_at"`

	Acknowledgement *Acknowledgement `json:"acknowledgement,omitempty"`
	Feedback        *Feedback        `json:"feedback,omitempty"`
}

// IsExpired reports whether the decision's TTL has passed at now.
func (d *DecisionObject) IsExpired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}

// Acknowledge records the acknowledgement. A decision is acknowledged once.
func (d *DecisionObject) Acknowledge(by string, at time.Time) error {
	if d.Acknowledgement != nil {
		return fmt.Errorf("decision %s already acknowledged: %w", d.DecisionID, sentinel.ErrConflict)
	}
	d.Acknowledgement = &Acknowledgement{By: by, At: at.UTC()}
	return nil
}

// RecordFeedback attaches the customer's feedback, replacing any earlier one.
func (d *DecisionObject) RecordFeedback(fb Feedback) {
	d.Feedback = &fb
}
