package reasoning

import (
	"context"
	"log/slog"
	"slices"
)

// CausalLink is a weighted cause→effect edge.
type CausalLink struct {
	Cause    string  `json:"cause"`
	Effect   string  `json:"effect"`
	Strength float64 `json:"strength"`
}

// Enrichment is optional narrative added to the causal chain.
type Enrichment struct {
	Narrative   string   `json:"narrative"`
	Confounders []string `json:"confounders,omitempty"`
}

// CausalEnricher adds best-effort context to a causal analysis. Its failures
// never affect the deterministic chain.
type CausalEnricher interface {
	Enrich(ctx context.Context, analysis CausalOutput) (Enrichment, error)
}

// CausalInputs feed the causal layer.
type CausalInputs struct {
	Sources
	Factual  FactualOutput
	Temporal TemporalOutput
}

// CausalOutput explains how the disruption reaches the customer.
type CausalOutput struct {
	LayerResult
	Scenario        Scenario       `json:"scenario"`
	RootCauses      []string       `json:"root_causes"`
	Chain           []CausalLink   `json:"chain"`
	Interventions   []Intervention `json:"interventions"`
	Confounders     []string       `json:"confounders"`
	ChainStrength   float64        `json:"chain_strength"`
	ChainConfidence float64        `json:"chain_confidence"`
	Enrichment      *Enrichment    `json:"enrichment,omitempty"`

	// EnrichmentFailed is set when an enricher was configured but failed.
	EnrichmentFailed bool `json:"enrichment_failed,omitempty"`
}

// CausalLayer builds the causal chain.
type CausalLayer interface {
	Explain(ctx context.Context, in CausalInputs) (CausalOutput, error)
}

type causalLayer struct {
	registry *Registry
	enricher CausalEnricher
	logger   *slog.Logger
}

// NewCausalLayer returns a template-driven causal layer. enricher may be nil.
func NewCausalLayer(registry *Registry, enricher CausalEnricher, logger *slog.Logger) CausalLayer {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &causalLayer{registry: registry, enricher: enricher, logger: logger}
}

func (l *causalLayer) Explain(ctx context.Context, in CausalInputs) (CausalOutput, error) {
	scenario := SelectScenario(in.Signal)
	tmpl, specific := l.registry.Template(scenario, in.Signal)
	out := CausalOutput{
		LayerResult: LayerResult{Layer: LayerCausal},
		Scenario:    tmpl.Scenario,
		RootCauses:  tmpl.RootCauses,
		Confounders: slices.Clone(tmpl.Confounders),
	}
	if !specific || tmpl.Scenario == ScenarioGeneric {
		out.warn("no specific causal template matched; generic chain used")
	}

	// link strength scales from half its base at p=0 to the full base at p=1
	weight := 0.5 + 0.5*in.Signal.Probability
	strength := 1.0
	for _, lt := range tmpl.Links {
		s := round(lt.BaseStrength*weight, 4)
		out.Chain = append(out.Chain, CausalLink{Cause: lt.Cause, Effect: lt.Effect, Strength: s})
		strength *= s
	}
	if len(out.Chain) == 0 {
		strength = 0
	}
	out.ChainStrength = round(strength, 4)
	out.ChainConfidence = round((strength+in.Factual.DataQualityScore)/2, 4)

	out.Interventions = slices.Clone(tmpl.Interventions)
	slices.SortStableFunc(out.Interventions, func(a, b Intervention) int {
		switch {
		case a.Effectiveness > b.Effectiveness:
			return -1
		case a.Effectiveness < b.Effectiveness:
			return 1
		}
		return 0
	})

	out.Confidence = out.ChainConfidence

	if l.enricher != nil {
		enrichment, err := l.enricher.Enrich(ctx, out)
		if err != nil {
			l.logger.WarnContext(ctx, "causal enrichment failed, using deterministic chain",
				"scenario", out.Scenario,
				"error", err,
			)
			out.EnrichmentFailed = true
		} else {
			out.Enrichment = &enrichment
		}
	}
	return out, nil
}
