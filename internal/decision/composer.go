package decision

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"riskcast/internal/decision/metrics"
	"riskcast/internal/domain"
	"riskcast/internal/reasoning"
	"riskcast/internal/uncertainty"
	"riskcast/pkg/platform/canonical"
)

// DefaultTTL is how long a decision stays valid after its reference time.
const DefaultTTL = 24 * time.Hour

// Composer runs the pipeline: exposure, impact, actions, trade-off and the
// final seven-question decision.
type Composer struct {
	matcher  *Matcher
	impact   *ImpactCalculator
	actions  *ActionGenerator
	tradeoff *TradeOffAnalyzer
	engine   *uncertainty.Engine
	ttl      time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Composer.
type Option func(*Composer)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Composer) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Composer) {
		c.metrics = m
	}
}

// WithTTL sets how long composed decisions stay valid.
func WithTTL(ttl time.Duration) Option {
	return func(c *Composer) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithEngine sets the uncertainty engine used for impact sampling.
func WithEngine(e *uncertainty.Engine) Option {
	return func(c *Composer) {
		c.engine = e
	}
}

// NewComposer creates a Composer.
func NewComposer(opts ...Option) *Composer {
	c := &Composer{
		matcher:  NewMatcher(),
		actions:  NewActionGenerator(),
		tradeoff: NewTradeOffAnalyzer(),
		ttl:      DefaultTTL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.engine == nil {
		c.engine = uncertainty.NewEngine()
	}
	c.impact = NewImpactCalculator(c.engine)
	return c
}

// Match finds the customer's exposure to the signal.
func (c *Composer) Match(sig domain.Signal, obs domain.Reality, cc domain.CustomerContext) ExposureMatch {
	m := c.matcher.Match(sig, obs, cc)
	c.metrics.IncrementMatch(!m.Empty())
	return m
}

// Inputs are everything the composer fuses into a decision.
type Inputs struct {
	Signal        domain.Signal
	Reality       domain.Reality
	Context       domain.CustomerContext
	Match         ExposureMatch
	Trace         *reasoning.Trace // optional
	ReferenceTime time.Time
}

// Compose builds the decision. A match without shipments yields (nil, nil):
// no exposure is not an error.
func (c *Composer) Compose(ctx context.Context, in Inputs) (*DecisionObject, error) {
	if in.Match.Empty() {
		return nil, nil
	}
	started := time.Now()
	ref := in.ReferenceTime.UTC()

	stage := time.Now()
	impact, err := c.impact.Calculate(ctx, in.Match, in.Signal, in.Reality)
	if err != nil {
		return nil, fmt.Errorf("calculating impact: %w", err)
	}
	c.metrics.ObserveStage("impact", time.Since(stage))

	stage = time.Now()
	actions := c.actions.Generate(in.Match, impact, ref)
	c.metrics.ObserveStage("actions", time.Since(stage))

	stage = time.Now()
	tradeoff := c.tradeoff.Analyze(impact, actions, in.Reality, in.Trace, ref)
	c.metrics.ObserveStage("tradeoff", time.Since(stage))

	id := DecisionID(in.Signal.SignalID, in.Context.CustomerID, tradeoff.RecommendedAction, ref)
	d := &DecisionObject{
		DecisionID:    id,
		CustomerID:    in.Context.CustomerID,
		SignalID:      in.Signal.SignalID,
		Q1What:        c.what(in, impact),
		Q2When:        c.when(in, tradeoff),
		Q3Severity:    c.severity(in.Match, impact),
		Q4Why:         c.why(in),
		Q5Action:      c.whatToDo(actions, tradeoff),
		Q6Confidence:  c.confidence(in),
		Q7Inaction:    c.inaction(tradeoff),
		ReferenceTime: ref,
		CreatedAt:     ref,
		ExpiresAt:     ref.Add(c.ttl),
	}
	if in.Trace != nil {
		d.TraceID = in.Trace.TraceID
	}

	c.metrics.ObserveStage("compose", time.Since(started))
	c.metrics.IncrementOutcome(string(impact.Severity), string(tradeoff.RecommendedAction))
	c.logger.InfoContext(ctx, "decision composed",
		"decision_id", id,
		"customer_id", d.CustomerID,
		"severity", impact.Severity,
		"action", tradeoff.RecommendedAction,
		"total_cost_usd", impact.TotalCostUSD,
	)
	return d, nil
}

// DecisionID derives the decision identifier from the signal, customer,
// recommended action and reference time.
func DecisionID(signalID, customerID string, action domain.ActionType, ref time.Time) string {
	return "dec_" + canonical.HashStrings(signalID, customerID, string(action), ref.UTC().Format(time.RFC3339Nano))[:32]
}

func (c *Composer) what(in Inputs, impact TotalImpact) WhatIsHappening {
	title := in.Signal.Title
	if title == "" {
		title = fmt.Sprintf("%s disruption", in.Signal.Category)
	}
	return WhatIsHappening{
		Summary: fmt.Sprintf("%s at %s affects %d of your shipments carrying $%.0f of cargo (%s)",
			title, in.Signal.Chokepoint, len(in.Match.Shipments), in.Match.TotalExposureUSD, in.Reality.Status),
		Chokepoint:        in.Signal.Chokepoint,
		Category:          in.Signal.Category,
		AffectedShipments: in.Match.ShipmentIDs(),
	}
}

func (c *Composer) when(in Inputs, t TradeOffAnalysis) When {
	deadline := t.PointOfNoReturn
	if in.Trace != nil {
		deadline = in.Trace.Temporal.DecisionDeadline
	}
	return When{
		ImpactStart:      in.Signal.ImpactStart,
		DecisionDeadline: deadline,
		PointOfNoReturn:  t.PointOfNoReturn,
		Urgency:          t.Urgency,
	}
}

func (c *Composer) severity(m ExposureMatch, impact TotalImpact) HowSevere {
	return HowSevere{
		Severity:          impact.Severity,
		TotalCostUSD:      impact.TotalCostUSD,
		CostCI90:          uncertainty.Interval{Low: math.Round(impact.Cost.CI90.Low), High: math.Round(impact.Cost.CI90.High)},
		ExposureUSD:       m.TotalExposureUSD,
		ShipmentsAffected: len(m.Shipments),
		ExpectedDelayDays: impact.ExpectedDelayDays,
		DelayRangeDays:    uncertainty.Interval{Low: impact.MinDelayDays, High: impact.MaxDelayDays},
	}
}

func (c *Composer) why(in Inputs) Why {
	var w Why
	for _, ev := range in.Signal.Evidence {
		w.Evidence = append(w.Evidence, fmt.Sprintf("%s: %s", ev.Source, ev.Description))
	}
	w.Evidence = append(w.Evidence, fmt.Sprintf("%s reality: %s, %d vessels waiting, rates %+.0f%%",
		in.Reality.Chokepoint, in.Reality.Status, in.Reality.VesselsWaiting, in.Reality.RateIncreasePct*100))

	if in.Trace == nil {
		w.Summary = fmt.Sprintf("%s signal at %s with probability %.0f%%",
			in.Signal.Category, in.Signal.Chokepoint, in.Signal.Probability*100)
		return w
	}
	causal := in.Trace.Causal
	for _, l := range causal.Chain {
		w.CausalChain = append(w.CausalChain, fmt.Sprintf("%s -> %s (%.2f)", l.Cause, l.Effect, l.Strength))
	}
	root := string(causal.Scenario)
	if len(causal.RootCauses) > 0 {
		root = causal.RootCauses[0]
	}
	w.Summary = fmt.Sprintf("%s; adjusted probability %.0f%%, chain confidence %.2f",
		root, in.Trace.Counterfactual.AdjustedProbability*100, causal.ChainConfidence)
	if causal.Enrichment != nil && causal.Enrichment.Narrative != "" {
		w.Summary += ". " + causal.Enrichment.Narrative
	}
	return w
}

func (c *Composer) whatToDo(actions ActionSet, t TradeOffAnalysis) WhatToDo {
	out := WhatToDo{Reason: t.Reason}
	for _, a := range actions.Actions {
		if a.Type == t.RecommendedAction {
			out.Primary = a
			continue
		}
		out.Alternatives = append(out.Alternatives, a)
	}
	return out
}

func (c *Composer) confidence(in Inputs) HowConfident {
	out := HowConfident{
		Score: in.Match.Confidence,
		Factors: []string{
			fmt.Sprintf("exposure match confidence %.2f", in.Match.Confidence),
			fmt.Sprintf("reality status %s", in.Reality.Status),
		},
	}
	if in.Trace != nil {
		out.Score = (in.Match.Confidence + in.Trace.Confidence()) / 2
		out.Factors = append(out.Factors,
			fmt.Sprintf("reasoning confidence %.2f", in.Trace.Confidence()),
			fmt.Sprintf("data quality %.2f", in.Trace.Factual.DataQualityScore),
			fmt.Sprintf("robustness %.2f", in.Trace.Counterfactual.Robustness),
		)
	}
	out.Score = roundTo(out.Score, 4)
	switch {
	case out.Score >= 0.75:
		out.Level = "high"
	case out.Score >= 0.5:
		out.Level = "medium"
	default:
		out.Level = "low"
	}
	return out
}

func (c *Composer) inaction(t TradeOffAnalysis) CostOfInaction {
	out := CostOfInaction{
		NowUSD:  t.CostAt(0),
		In6hUSD: t.CostAt(6),
		In24USD: t.CostAt(24),
		In48USD: t.CostAt(48),
	}
	out.Message = fmt.Sprintf("Waiting 48h raises the expected cost from $%.0f to $%.0f", out.NowUSD, out.In48USD)
	return out
}
