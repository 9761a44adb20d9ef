// Package orchestrator runs a decision attempt end to end: it freezes the
// inputs in the audit ledger, reasons over them, composes the decision,
// records the outcome and persists the result.
package orchestrator

//go:generate mockgen -source=orchestrator.go -destination=mocks/mocks.go -package=mocks Reasoner,Explainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"riskcast/internal/audit"
	"riskcast/internal/decision"
	"riskcast/internal/decision/store"
	"riskcast/internal/domain"
	"riskcast/internal/platform/metrics"
	"riskcast/internal/reasoning"
	"riskcast/pkg/platform/circuit"
	"riskcast/pkg/requestcontext"
)

// Reasoner produces a reasoning trace. *reasoning.Engine implements it.
type Reasoner interface {
	Reason(ctx context.Context, src reasoning.Sources) (*reasoning.Trace, error)
}

// Explainer writes a natural-language explanation of a decision. It is best
// effort: failures fall back to a deterministic template.
type Explainer interface {
	Explain(ctx context.Context, d *decision.DecisionObject, t *reasoning.Trace) (string, error)
}

// Request is one decision attempt's inputs.
type Request struct {
	Signal  domain.Signal          `json:"signal"`
	Reality domain.Reality         `json:"reality"`
	Context domain.CustomerContext `json:"context"`
	// ReferenceTime pins "now" for the attempt. Zero means the time carried
	// by ctx, or the wall clock.
	ReferenceTime time.Time `json:"reference_time,omitzero"`
}

// Result is the outcome of a decision attempt. Decision is nil unless
// Outcome is generated.
type Result struct {
	Outcome    audit.Outcome            `json:"outcome"`
	SnapshotID string                   `json:"snapshot_id"`
	Decision   *decision.DecisionObject `json:"decision,omitempty"`
	Trace      *reasoning.Trace         `json:"trace,omitempty"`
	Escalation *reasoning.Escalation    `json:"escalation,omitempty"`
	Degraded   []string                 `json:"degraded,omitempty"`
}

// Service orchestrates decision attempts over a shared ledger.
type Service struct {
	ledger    *audit.Ledger
	reasoner  Reasoner
	composer  *decision.Composer
	decisions store.Store

	explainer     Explainer
	breaker       *circuit.Breaker
	explainBudget time.Duration
	logger        *slog.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	modelVersion  string
	configVersion string
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithExplainer enables natural-language explanations.
func WithExplainer(e Explainer) Option {
	return func(s *Service) {
		s.explainer = e
	}
}

// WithExplainerBreaker replaces the default explainer breaker.
func WithExplainerBreaker(b *circuit.Breaker) Option {
	return func(s *Service) {
		if b != nil {
			s.breaker = b
		}
	}
}

// WithExplainTimeout bounds each explainer call.
func WithExplainTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.explainBudget = d
		}
	}
}

// WithVersions sets the model and configuration versions written to
// processing records.
func WithVersions(model, config string) Option {
	return func(s *Service) {
		s.modelVersion = model
		s.configVersion = config
	}
}

// New creates a Service. All four collaborators are required.
func New(ledger *audit.Ledger, reasoner Reasoner, composer *decision.Composer, decisions store.Store, opts ...Option) (*Service, error) {
	if ledger == nil || reasoner == nil || composer == nil || decisions == nil {
		return nil, errors.New("orchestrator requires ledger, reasoner, composer and decision store")
	}
	s := &Service{
		ledger:        ledger,
		reasoner:      reasoner,
		composer:      composer,
		decisions:     decisions,
		breaker:       circuit.New("explainer", circuit.WithFailureThreshold(3), circuit.WithCooldown(time.Minute)),
		explainBudget: 5 * time.Second,
		logger:        slog.Default(),
		tracer:        otel.Tracer("riskcast/orchestrator"),
		modelVersion:  "riskcast-core",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// attempt carries the bookkeeping of one Generate call.
type attempt struct {
	started    time.Time
	snapshot   audit.InputSnapshot
	trace      *reasoning.Trace
	decisionID string
	degraded   []string
}

// Generate runs one decision attempt. Escalation and missing exposure are
// results, not errors; a reasoning failure is recorded and returned.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	defer s.metrics.TrackInFlight()()
	ref := req.ReferenceTime
	if ref.IsZero() {
		ref = requestcontext.Now(ctx)
	}
	ref = ref.UTC()
	ctx = requestcontext.WithTime(ctx, ref)

	ctx, span := s.tracer.Start(ctx, "orchestrator.Generate",
		trace.WithAttributes(
			attribute.String("signal_id", req.Signal.SignalID),
			attribute.String("customer_id", req.Context.CustomerID),
		))
	defer span.End()

	if err := domain.ValidateInputs(req.Signal, req.Reality, req.Context); err != nil {
		span.SetStatus(codes.Error, "invalid input")
		return nil, err
	}

	at := &attempt{started: time.Now()}
	snap, _, err := s.ledger.CaptureSnapshot(ctx, req.Signal, req.Reality, req.Context)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot capture failed")
		return nil, fmt.Errorf("capturing input snapshot: %w", err)
	}
	at.snapshot = snap
	span.SetAttributes(attribute.String("snapshot_id", snap.SnapshotID))

	tr, err := s.reasoner.Reason(ctx, reasoning.Sources{
		Signal:        req.Signal,
		Reality:       req.Reality,
		Context:       req.Context,
		ReferenceTime: ref,
	})
	if err != nil {
		return nil, s.fail(ctx, span, at, "reasoning", err)
	}
	at.trace = tr
	span.SetAttributes(attribute.String("trace_id", tr.TraceID))
	if tr.Causal.EnrichmentFailed {
		at.degraded = append(at.degraded, audit.DegradedCausalEnrichment)
	}

	if tr.Escalated() {
		return s.escalate(ctx, span, at)
	}

	match := s.composer.Match(req.Signal, req.Reality, req.Context)
	if match.Empty() {
		return s.noExposure(ctx, at)
	}

	d, err := s.composer.Compose(ctx, decision.Inputs{
		Signal:        req.Signal,
		Reality:       req.Reality,
		Context:       req.Context,
		Match:         match,
		Trace:         tr,
		ReferenceTime: ref,
	})
	if err != nil {
		return nil, s.fail(ctx, span, at, "composition", err)
	}
	if d == nil {
		return s.noExposure(ctx, at)
	}

	d.Explanation = s.explain(ctx, d, tr, at)

	at.decisionID = d.DecisionID

	// The decision is stored before it is announced, so the ledger never
	// carries DECISION_GENERATED for a decision nobody can read back.
	if err := s.decisions.Save(ctx, d); err != nil {
		return nil, s.fail(ctx, span, at, "persist", fmt.Errorf("persisting decision %s: %w", d.DecisionID, err))
	}
	if _, err := s.ledger.Append(ctx, audit.Entry{
		EventType:  audit.EventDecisionGenerated,
		EntityType: audit.EntityDecision,
		EntityID:   d.DecisionID,
		Payload: generatedPayload{
			SnapshotID: snap.SnapshotID,
			TraceID:    tr.TraceID,
			Decision:   d,
		},
	}); err != nil {
		return nil, s.fail(ctx, span, at, "persist", fmt.Errorf("recording decision %s: %w", d.DecisionID, err))
	}
	if err := s.recordProcessing(ctx, at, audit.OutcomeGenerated, d.DecisionID); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("decision_id", d.DecisionID),
		attribute.String("action", string(d.Q5Action.Primary.Type)),
	)
	s.logger.InfoContext(ctx, "decision generated",
		"decision_id", d.DecisionID,
		"snapshot_id", snap.SnapshotID,
		"trace_id", tr.TraceID,
		"severity", d.Q3Severity.Severity,
		"action", d.Q5Action.Primary.Type,
	)
	return &Result{
		Outcome:    audit.OutcomeGenerated,
		SnapshotID: snap.SnapshotID,
		Decision:   d,
		Trace:      tr,
		Degraded:   at.degraded,
	}, nil
}

type generatedPayload struct {
	SnapshotID string                   `json:"snapshot_id"`
	TraceID    string                   `json:"trace_id"`
	Decision   *decision.DecisionObject `json:"decision"`
}

type escalatedPayload struct {
	SnapshotID string                `json:"snapshot_id"`
	TraceID    string                `json:"trace_id"`
	CustomerID string                `json:"customer_id"`
	SignalID   string                `json:"signal_id"`
	Escalation *reasoning.Escalation `json:"escalation"`
	Confidence float64               `json:"confidence"`
}

type noExposurePayload struct {
	SnapshotID string `json:"snapshot_id"`
	TraceID    string `json:"trace_id"`
	CustomerID string `json:"customer_id"`
	SignalID   string `json:"signal_id"`
}

type failedPayload struct {
	SnapshotID string `json:"snapshot_id"`
	DecisionID string `json:"decision_id,omitempty"`
	Stage      string `json:"stage"`
	Layer      string `json:"layer,omitempty"`
	Error      string `json:"error"`
}

func (s *Service) escalate(ctx context.Context, span trace.Span, at *attempt) (*Result, error) {
	tr := at.trace
	snap := at.snapshot
	if _, err := s.ledger.Append(ctx, audit.Entry{
		EventType:  audit.EventDecisionEscalated,
		EntityType: audit.EntitySnapshot,
		EntityID:   snap.SnapshotID,
		Payload: escalatedPayload{
			SnapshotID: snap.SnapshotID,
			TraceID:    tr.TraceID,
			CustomerID: snap.CustomerID,
			SignalID:   snap.SignalID,
			Escalation: tr.Escalation,
			Confidence: tr.Confidence(),
		},
	}); err != nil {
		return nil, fmt.Errorf("recording escalation: %w", err)
	}
	if err := s.recordProcessing(ctx, at, audit.OutcomeEscalated, ""); err != nil {
		return nil, err
	}

	var trigger string
	if tr.Escalation != nil {
		trigger = string(tr.Escalation.Trigger)
	}
	span.SetAttributes(attribute.String("escalation_trigger", trigger))
	s.logger.WarnContext(ctx, "decision escalated for human review",
		"snapshot_id", snap.SnapshotID,
		"trace_id", tr.TraceID,
		"trigger", trigger,
	)
	return &Result{
		Outcome:    audit.OutcomeEscalated,
		SnapshotID: snap.SnapshotID,
		Trace:      tr,
		Escalation: tr.Escalation,
		Degraded:   at.degraded,
	}, nil
}

func (s *Service) noExposure(ctx context.Context, at *attempt) (*Result, error) {
	snap := at.snapshot
	if _, err := s.ledger.Append(ctx, audit.Entry{
		EventType:  audit.EventNoExposure,
		EntityType: audit.EntityCustomer,
		EntityID:   snap.CustomerID,
		Payload: noExposurePayload{
			SnapshotID: snap.SnapshotID,
			TraceID:    at.trace.TraceID,
			CustomerID: snap.CustomerID,
			SignalID:   snap.SignalID,
		},
	}); err != nil {
		return nil, fmt.Errorf("recording no exposure: %w", err)
	}
	if err := s.recordProcessing(ctx, at, audit.OutcomeNoExposure, ""); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "no exposure for customer",
		"snapshot_id", snap.SnapshotID,
		"customer_id", snap.CustomerID,
		"signal_id", snap.SignalID,
	)
	return &Result{
		Outcome:    audit.OutcomeNoExposure,
		SnapshotID: snap.SnapshotID,
		Trace:      at.trace,
		Degraded:   at.degraded,
	}, nil
}

// fail records REASONING_FAILED and returns cause wrapped. The audit writes
// survive cancellation of ctx.
func (s *Service) fail(ctx context.Context, span trace.Span, at *attempt, stage string, cause error) error {
	span.RecordError(cause)
	span.SetStatus(codes.Error, stage+" failed")

	wctx := context.WithoutCancel(ctx)
	payload := failedPayload{
		SnapshotID: at.snapshot.SnapshotID,
		DecisionID: at.decisionID,
		Stage:      stage,
		Error:      cause.Error(),
	}
	if layer, ok := reasoning.FailedLayer(cause); ok {
		payload.Layer = string(layer)
	}
	if _, err := s.ledger.Append(wctx, audit.Entry{
		EventType:  audit.EventReasoningFailed,
		EntityType: audit.EntitySnapshot,
		EntityID:   at.snapshot.SnapshotID,
		Payload:    payload,
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to record decision failure",
			"snapshot_id", at.snapshot.SnapshotID,
			"error", err,
		)
	}
	if err := s.recordProcessing(wctx, at, audit.OutcomeFailed, at.decisionID); err != nil {
		s.logger.ErrorContext(ctx, "failed to record processing", "error", err)
	}
	s.logger.ErrorContext(ctx, "decision attempt failed",
		"snapshot_id", at.snapshot.SnapshotID,
		"stage", stage,
		"error", cause,
	)
	return fmt.Errorf("%s failed for snapshot %s: %w", stage, at.snapshot.SnapshotID, cause)
}

func (s *Service) recordProcessing(ctx context.Context, at *attempt, outcome audit.Outcome, decisionID string) error {
	elapsed := time.Since(at.started)
	p := audit.ProcessingRecord{
		SnapshotID:    at.snapshot.SnapshotID,
		DecisionID:    decisionID,
		CustomerID:    at.snapshot.CustomerID,
		Outcome:       outcome,
		ModelVersion:  s.modelVersion,
		ConfigVersion: s.configVersion,
		Degraded:      at.degraded,
		DurationMs:    float64(elapsed.Microseconds()) / 1000,
	}
	if tr := at.trace; tr != nil {
		p.TraceID = tr.TraceID
		for _, l := range tr.LayersExecuted {
			p.LayersExecuted = append(p.LayersExecuted, string(l))
		}
		p.LayerTimingsMs = make(map[string]float64, len(tr.LayersExecuted))
		for layer, d := range tr.LayerTimings() {
			p.LayerTimingsMs[string(layer)] = float64(d.Microseconds()) / 1000
		}
	}
	s.metrics.ObserveAttempt(string(outcome), elapsed)
	if _, err := s.ledger.RecordProcessing(ctx, p); err != nil {
		return fmt.Errorf("recording processing for snapshot %s: %w", at.snapshot.SnapshotID, err)
	}
	return nil
}
