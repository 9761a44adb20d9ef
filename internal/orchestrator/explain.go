package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"riskcast/internal/audit"
	"riskcast/internal/decision"
	"riskcast/internal/reasoning"
)

// explain returns the explainer's text, or the deterministic template when
// the explainer is absent, failing or behind an open circuit.
func (s *Service) explain(ctx context.Context, d *decision.DecisionObject, tr *reasoning.Trace, at *attempt) string {
	if s.explainer == nil {
		return FallbackExplanation(d)
	}
	if !s.breaker.Allow() {
		s.metrics.IncExplanationFallback("circuit_open")
		at.degraded = append(at.degraded, audit.DegradedExplanationFallback)
		return FallbackExplanation(d)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.explainBudget)
	defer cancel()
	text, err := s.explainer.Explain(callCtx, d, tr)
	if err == nil && strings.TrimSpace(text) == "" {
		err = fmt.Errorf("empty explanation")
	}
	if err != nil {
		_, change := s.breaker.RecordFailure()
		if change.Opened {
			s.metrics.SetExplainerBreaker(true)
		}
		s.metrics.IncExplanationFallback("error")
		s.logger.WarnContext(ctx, "explainer failed, using template",
			"decision_id", d.DecisionID,
			"circuit_opened", change.Opened,
			"error", err,
		)
		at.degraded = append(at.degraded, audit.DegradedExplanationFallback)
		return FallbackExplanation(d)
	}

	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.metrics.SetExplainerBreaker(false)
		s.logger.InfoContext(ctx, "explainer circuit closed")
	}
	return text
}

// FallbackExplanation renders a decision as plain sentences using only the
// decision's own fields.
func FallbackExplanation(d *decision.DecisionObject) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s. ", strings.TrimSuffix(d.Q1What.Summary, "."))
	fmt.Fprintf(&b, "Estimated impact is %s: $%.0f across %d shipment(s), about %.1f days of delay. ",
		d.Q3Severity.Severity, d.Q3Severity.TotalCostUSD, d.Q3Severity.ShipmentsAffected, d.Q3Severity.ExpectedDelayDays)

	primary := d.Q5Action.Primary
	fmt.Fprintf(&b, "Recommended action: %s", primary.Type)
	if primary.CostUSD > 0 {
		fmt.Fprintf(&b, " at a cost of $%.0f", primary.CostUSD)
	}
	if !d.Q2When.DecisionDeadline.IsZero() {
		fmt.Fprintf(&b, ", decide by %s", d.Q2When.DecisionDeadline.UTC().Format("2006-01-02 15:04 MST"))
	}
	b.WriteString(". ")

	if d.Q7Inaction.In48USD > d.Q7Inaction.NowUSD {
		fmt.Fprintf(&b, "Waiting 48 hours raises the cost of doing nothing from $%.0f to $%.0f. ",
			d.Q7Inaction.NowUSD, d.Q7Inaction.In48USD)
	}
	fmt.Fprintf(&b, "Confidence is %s (%.0f%%).", d.Q6Confidence.Level, d.Q6Confidence.Score*100)
	return b.String()
}
