package orchestrator

import (
	"context"
	"fmt"

	"riskcast/internal/audit"
	"riskcast/internal/decision"
	"riskcast/internal/domain"
	"riskcast/pkg/platform/sentinel"
	"riskcast/pkg/requestcontext"
)

// GetDecision returns a live decision. Expired decisions report
// sentinel.ErrExpired.
func (s *Service) GetDecision(ctx context.Context, decisionID string) (*decision.DecisionObject, error) {
	d, err := s.decisions.Get(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	if d.IsExpired(requestcontext.Now(ctx)) {
		return nil, fmt.Errorf("decision %s: %w", decisionID, sentinel.ErrExpired)
	}
	return d, nil
}

// Acknowledge records that actor saw a live decision.
func (s *Service) Acknowledge(ctx context.Context, decisionID, actor string) (*decision.DecisionObject, error) {
	d, err := s.GetDecision(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	if err := d.Acknowledge(actor, now); err != nil {
		return nil, err
	}
	if _, err := s.ledger.RecordAcknowledgement(ctx, audit.Interaction{
		DecisionID: d.DecisionID,
		CustomerID: d.CustomerID,
		Actor:      actor,
		At:         now,
	}); err != nil {
		return nil, fmt.Errorf("recording acknowledgement: %w", err)
	}
	s.metrics.IncHumanInteraction(string(audit.EventDecisionAcknowledged))
	if err := s.decisions.Save(ctx, d); err != nil {
		return nil, fmt.Errorf("persisting acknowledgement: %w", err)
	}
	return d, nil
}

// FeedbackInput is what a person reports after acting on a decision.
type FeedbackInput struct {
	Actor         string
	ActionTaken   domain.ActionType
	Helpful       bool
	ActualCostUSD float64
	Comment       string
}

// RecordFeedback attaches feedback to a decision, expired or not. Taking an
// action other than the recommended one is also recorded as an override.
func (s *Service) RecordFeedback(ctx context.Context, decisionID string, in FeedbackInput) (*decision.DecisionObject, error) {
	if !in.ActionTaken.Valid() {
		return nil, fmt.Errorf("unknown action %q: %w", in.ActionTaken, domain.ErrInvalidInput)
	}
	d, err := s.decisions.Get(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	helpful := in.Helpful
	interaction := audit.Interaction{
		DecisionID:     d.DecisionID,
		CustomerID:     d.CustomerID,
		Actor:          in.Actor,
		ActionTaken:    in.ActionTaken,
		OriginalAction: d.Q5Action.Primary.Type,
		Helpful:        &helpful,
		ActualCostUSD:  in.ActualCostUSD,
		Comment:        in.Comment,
		At:             now,
	}
	if _, err := s.ledger.RecordFeedback(ctx, interaction); err != nil {
		return nil, fmt.Errorf("recording feedback: %w", err)
	}
	s.metrics.IncHumanInteraction(string(audit.EventFeedbackRecorded))

	if in.ActionTaken != d.Q5Action.Primary.Type {
		if _, err := s.ledger.RecordOverride(ctx, interaction); err != nil {
			return nil, fmt.Errorf("recording override: %w", err)
		}
		s.metrics.IncHumanInteraction(string(audit.EventDecisionOverridden))
	}

	d.RecordFeedback(decision.Feedback{
		ActionTaken: in.ActionTaken,
		Helpful:     in.Helpful,
		Comment:     in.Comment,
		ActualCost:  in.ActualCostUSD,
		RecordedAt:  now.UTC(),
	})
	if err := s.decisions.Save(ctx, d); err != nil {
		return nil, fmt.Errorf("persisting feedback: %w", err)
	}
	return d, nil
}
