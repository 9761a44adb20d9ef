package reasoning

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

	"riskcast/internal/reasoning/metrics"
	"riskcast/pkg/requestcontext"
)

// LayerError reports the layer that aborted a trace.
type LayerError struct {
	Layer LayerName
	Err   error
}

func (e *LayerError) Error() string {
	return fmt.Sprintf("reasoning: %s layer: %v", e.Layer, e.Err)
}

func (e *LayerError) Unwrap() error {
	return e.Err
}

// FailedLayer returns the layer named by a LayerError in err's chain.
func FailedLayer(err error) (LayerName, bool) {
	var le *LayerError
	if errors.As(err, &le) {
		return le.Layer, true
	}
	return "", false
}

// Engine runs the six reasoning layers strictly in order. Any layer error
// aborts the pass; a partial trace is never returned.
type Engine struct {
	factual        FactualLayer
	temporal       TemporalLayer
	causal         CausalLayer
	counterfactual CounterfactualLayer
	strategic      StrategicLayer
	meta           MetaLayer

	registry   *Registry
	enricher   CausalEnricher
	thresholds ThresholdProvider
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithThresholds sets the escalation thresholds used by the default meta layer.
func WithThresholds(p ThresholdProvider) Option {
	return func(e *Engine) {
		e.thresholds = p
	}
}

// WithCausalEnricher attaches a best-effort enricher to the default causal layer.
func WithCausalEnricher(c CausalEnricher) Option {
	return func(e *Engine) {
		e.enricher = c
	}
}

// WithRegistry replaces the causal template registry.
func WithRegistry(r *Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

func WithFactualLayer(l FactualLayer) Option {
	return func(e *Engine) { e.factual = l }
}

func WithTemporalLayer(l TemporalLayer) Option {
	return func(e *Engine) { e.temporal = l }
}

func WithCausalLayer(l CausalLayer) Option {
	return func(e *Engine) { e.causal = l }
}

func WithCounterfactualLayer(l CounterfactualLayer) Option {
	return func(e *Engine) { e.counterfactual = l }
}

func WithStrategicLayer(l StrategicLayer) Option {
	return func(e *Engine) { e.strategic = l }
}

func WithMetaLayer(l MetaLayer) Option {
	return func(e *Engine) { e.meta = l }
}

// New builds an engine. Layers not supplied through options use the
// rule-based defaults.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger: slog.Default(),
		tracer: otel.Tracer("riskcast/reasoning"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.factual == nil {
		e.factual = NewFactualLayer()
	}
	if e.temporal == nil {
		e.temporal = NewTemporalLayer()
	}
	if e.causal == nil {
		e.causal = NewCausalLayer(e.registry, e.enricher, e.logger)
	}
	if e.counterfactual == nil {
		e.counterfactual = NewCounterfactualLayer()
	}
	if e.strategic == nil {
		e.strategic = NewStrategicLayer()
	}
	if e.meta == nil {
		e.meta = NewMetaLayer(e.thresholds)
	}
	return e
}

// Reason runs a full pass over src. A zero ReferenceTime is taken from ctx.
func (e *Engine) Reason(ctx context.Context, src Sources) (*Trace, error) {
	if src.ReferenceTime.IsZero() {
		src.ReferenceTime = requestcontext.Now(ctx)
	}
	traceID, err := TraceID(src.Signal, src.Context, src.ReferenceTime)
	if err != nil {
		return nil, fmt.Errorf("reasoning: deriving trace id: %w", err)
	}

	ctx, span := e.tracer.Start(ctx, "reasoning.Reason",
		trace.WithAttributes(
			attribute.String("trace_id", traceID),
			attribute.String("signal_id", src.Signal.SignalID),
			attribute.String("customer_id", src.Context.CustomerID),
		))
	defer span.End()

	start := time.Now()
	t := &Trace{TraceID: traceID, ReferenceTime: src.ReferenceTime}

	fail := func(err error) (*Trace, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reasoning aborted")
		e.logger.ErrorContext(ctx, "reasoning aborted",
			"trace_id", traceID,
			"layers_completed", len(t.LayersExecuted),
			"error", err,
		)
		return nil, err
	}

	if t.Factual, err = runLayer(ctx, e, LayerFactual, func(ctx context.Context) (FactualOutput, error) {
		return e.factual.Verify(ctx, FactualInputs{Sources: src})
	}, func(o *FactualOutput) *LayerResult { return &o.LayerResult }); err != nil {
		return fail(err)
	}
	t.LayersExecuted = append(t.LayersExecuted, LayerFactual)

	if t.Temporal, err = runLayer(ctx, e, LayerTemporal, func(ctx context.Context) (TemporalOutput, error) {
		return e.temporal.Analyze(ctx, TemporalInputs{Sources: src, Factual: t.Factual})
	}, func(o *TemporalOutput) *LayerResult { return &o.LayerResult }); err != nil {
		return fail(err)
	}
	t.LayersExecuted = append(t.LayersExecuted, LayerTemporal)

	if t.Causal, err = runLayer(ctx, e, LayerCausal, func(ctx context.Context) (CausalOutput, error) {
		return e.causal.Explain(ctx, CausalInputs{Sources: src, Factual: t.Factual, Temporal: t.Temporal})
	}, func(o *CausalOutput) *LayerResult { return &o.LayerResult }); err != nil {
		return fail(err)
	}
	t.LayersExecuted = append(t.LayersExecuted, LayerCausal)

	if t.Counterfactual, err = runLayer(ctx, e, LayerCounterfactual, func(ctx context.Context) (CounterfactualOutput, error) {
		return e.counterfactual.Evaluate(ctx, CounterfactualInputs{
			Sources: src, Factual: t.Factual, Temporal: t.Temporal, Causal: t.Causal,
		})
	}, func(o *CounterfactualOutput) *LayerResult { return &o.LayerResult }); err != nil {
		return fail(err)
	}
	t.LayersExecuted = append(t.LayersExecuted, LayerCounterfactual)

	if t.Strategic, err = runLayer(ctx, e, LayerStrategic, func(ctx context.Context) (StrategicOutput, error) {
		return e.strategic.Assess(ctx, StrategicInputs{
			Sources: src, Factual: t.Factual, Temporal: t.Temporal, Causal: t.Causal, Counterfactual: t.Counterfactual,
		})
	}, func(o *StrategicOutput) *LayerResult { return &o.LayerResult }); err != nil {
		return fail(err)
	}
	t.LayersExecuted = append(t.LayersExecuted, LayerStrategic)

	if t.Meta, err = runLayer(ctx, e, LayerMeta, func(ctx context.Context) (MetaOutput, error) {
		return e.meta.Judge(ctx, MetaInputs{
			Sources: src, Factual: t.Factual, Temporal: t.Temporal, Causal: t.Causal,
			Counterfactual: t.Counterfactual, Strategic: t.Strategic,
		})
	}, func(o *MetaOutput) *LayerResult { return &o.LayerResult }); err != nil {
		return fail(err)
	}
	t.LayersExecuted = append(t.LayersExecuted, LayerMeta)

	t.Verdict = t.Meta.Verdict
	t.Escalation = t.Meta.Escalation
	t.Duration = time.Since(start)

	var trigger string
	if t.Escalation != nil {
		trigger = string(t.Escalation.Trigger)
	}
	e.metrics.IncrementVerdict(string(t.Verdict), trigger)
	span.SetAttributes(
		attribute.String("verdict", string(t.Verdict)),
		attribute.Float64("confidence", t.Meta.OverallConfidence),
	)
	e.logger.InfoContext(ctx, "reasoning complete",
		"trace_id", traceID,
		"verdict", t.Verdict,
		"trigger", trigger,
		"confidence", t.Meta.OverallConfidence,
		"recommended_action", t.RecommendedAction(),
	)
	return t, nil
}

// runLayer executes one layer inside its own span and stamps its timing.
func runLayer[T any](ctx context.Context, e *Engine, name LayerName, run func(context.Context) (T, error), result func(*T) *LayerResult) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		e.metrics.IncrementLayerFailure(string(name))
		return zero, &LayerError{Layer: name, Err: err}
	}

	ctx, span := e.tracer.Start(ctx, "reasoning."+string(name))
	defer span.End()

	started := time.Now()
	out, err := run(ctx)
	elapsed := time.Since(started)
	e.metrics.ObserveLayer(string(name), elapsed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "layer failed")
		e.metrics.IncrementLayerFailure(string(name))
		return zero, &LayerError{Layer: name, Err: err}
	}

	r := result(&out)
	r.Layer = name
	r.Confidence = clamp01(r.Confidence)
	r.StartedAt = started.UTC()
	r.Duration = elapsed
	span.SetAttributes(
		attribute.Float64("confidence", r.Confidence),
		attribute.Int("warnings", len(r.Warnings)),
	)
	return out, nil
}
