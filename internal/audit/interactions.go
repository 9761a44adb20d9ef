package audit

import (
	"context"
	"fmt"
	"time"

	"riskcast/internal/domain"
	"riskcast/pkg/platform/sentinel"
)

// Interaction is the payload of a human interaction record.
type Interaction struct {
	DecisionID     string            `json:"decision_id"`
	CustomerID     string            `json:"customer_id,omitempty"`
	Actor          string            `json:"actor"`
	ActionTaken    domain.ActionType `json:"action_taken,omitempty"`
	OriginalAction domain.ActionType `json:"original_action,omitempty"`
	Helpful        *bool             `json:"helpful,omitempty"`
	ActualCostUSD  float64           `json:"actual_cost_usd,omitempty"`
	Comment        string            `json:"comment,omitempty"`
	At             time.Time         `json:"at"`
}

// RecordAcknowledgement records that a person saw the decision.
func (l *Ledger) RecordAcknowledgement(ctx context.Context, in Interaction) (Record, error) {
	return l.interaction(ctx, EventDecisionAcknowledged, in)
}

// RecordFeedback records what the customer did and how it went.
func (l *Ledger) RecordFeedback(ctx context.Context, in Interaction) (Record, error) {
	if in.ActionTaken == "" {
		return Record{}, fmt.Errorf("feedback without action taken: %w", sentinel.ErrInvalidState)
	}
	return l.interaction(ctx, EventFeedbackRecorded, in)
}

// RecordOverride records a person replacing the recommended action.
func (l *Ledger) RecordOverride(ctx context.Context, in Interaction) (Record, error) {
	if in.OriginalAction == "" || in.ActionTaken == "" || in.OriginalAction == in.ActionTaken {
		return Record{}, fmt.Errorf("override must change the action: %w", sentinel.ErrInvalidState)
	}
	return l.interaction(ctx, EventDecisionOverridden, in)
}

func (l *Ledger) interaction(ctx context.Context, t EventType, in Interaction) (Record, error) {
	if in.DecisionID == "" || in.Actor == "" {
		return Record{}, fmt.Errorf("%s requires decision and actor: %w", t, sentinel.ErrInvalidState)
	}
	in.At = in.At.UTC()
	return l.Append(ctx, Entry{
		EventType:  t,
		EntityType: EntityDecision,
		EntityID:   in.DecisionID,
		Payload:    in,
	})
}
