package reasoning

import (
	"context"
	"fmt"

	"riskcast/internal/domain"
)

// Source credibility by origin.
var credibility = map[domain.SourceType]float64{
	domain.SourceSignal:   0.85,
	domain.SourceAIS:      0.95,
	domain.SourceCustomer: 0.90,
	domain.SourceNews:     0.60,
}

const defaultCredibility = 0.50

// Credibility returns the reliability rating for a source type.
func Credibility(t domain.SourceType) float64 {
	if c, ok := credibility[t]; ok {
		return c
	}
	return defaultCredibility
}

// Fact is one verified claim from one source.
type Fact struct {
	Source      string            `json:"source"`
	SourceType  domain.SourceType `json:"source_type"`
	Claim       string            `json:"claim"`
	Credibility float64           `json:"credibility"`
	// Corroborated is true when reality backs the claim.
	Corroborated bool `json:"corroborated"`
}

// FactualInputs feed the factual layer.
type FactualInputs struct {
	Sources
}

// FactualOutput scores how much the facts can be trusted.
type FactualOutput struct {
	LayerResult
	Facts              []Fact   `json:"facts"`
	SignalConfidence   float64  `json:"signal_confidence"`
	Freshness          float64  `json:"freshness"`
	SourceDiversity    float64  `json:"source_diversity"`
	AverageReliability float64  `json:"average_reliability"`
	DataQualityScore   float64  `json:"data_quality_score"`
	DataGaps           []string `json:"data_gaps,omitempty"`
	StalenessSeconds   float64  `json:"staleness_seconds"`
	UniqueSourceTypes  int      `json:"unique_source_types"`
}

// FactualLayer verifies facts and scores data quality.
type FactualLayer interface {
	Verify(ctx context.Context, in FactualInputs) (FactualOutput, error)
}

type factualLayer struct{}

// NewFactualLayer returns the rule-based factual layer.
func NewFactualLayer() FactualLayer {
	return factualLayer{}
}

const (
	freshnessHorizonSeconds = 3600.0
	diversityTarget         = 5.0
)

func (factualLayer) Verify(_ context.Context, in FactualInputs) (FactualOutput, error) {
	sig, obs := in.Signal, in.Reality
	out := FactualOutput{LayerResult: LayerResult{Layer: LayerFactual}}

	corroborated := obs.Status == domain.CorrelationConfirmed || obs.Status == domain.CorrelationMaterializing
	out.Facts = append(out.Facts,
		Fact{
			Source:       "signal:" + sig.SignalID,
			SourceType:   domain.SourceSignal,
			Claim:        fmt.Sprintf("%s disruption at %s with probability %.2f", sig.Category, sig.Chokepoint, sig.Probability),
			Credibility:  Credibility(domain.SourceSignal),
			Corroborated: corroborated,
		},
		Fact{
			Source:       "reality:" + string(obs.Chokepoint),
			SourceType:   domain.SourceAIS,
			Claim:        fmt.Sprintf("%d vessels waiting, transit delay %.1fh, status %s", obs.VesselsWaiting, obs.TransitDelayHours, obs.Status),
			Credibility:  Credibility(domain.SourceAIS),
			Corroborated: true,
		},
		Fact{
			Source:       "customer:" + in.Context.CustomerID,
			SourceType:   domain.SourceCustomer,
			Claim:        fmt.Sprintf("%d active shipments", len(in.Context.ActiveShipments())),
			Credibility:  Credibility(domain.SourceCustomer),
			Corroborated: true,
		},
	)
	for _, ev := range sig.Evidence {
		out.Facts = append(out.Facts, Fact{
			Source:       ev.Source,
			SourceType:   ev.SourceType,
			Claim:        ev.Description,
			Credibility:  Credibility(ev.SourceType),
			Corroborated: corroborated,
		})
	}

	types := make(map[domain.SourceType]struct{}, len(out.Facts))
	var reliability float64
	for _, f := range out.Facts {
		types[f.SourceType] = struct{}{}
		reliability += f.Credibility
	}

	out.StalenessSeconds = max(in.ReferenceTime.Sub(obs.ObservedAt).Seconds(), 0)
	out.UniqueSourceTypes = len(types)
	out.SignalConfidence = sig.Confidence
	out.Freshness = clamp01(1 - out.StalenessSeconds/freshnessHorizonSeconds)
	out.SourceDiversity = clamp01(float64(len(types)) / diversityTarget)
	out.AverageReliability = reliability / float64(len(out.Facts))
	out.DataQualityScore = round((out.SignalConfidence+out.Freshness+out.SourceDiversity+out.AverageReliability)/4, 4)

	if len(sig.Evidence) == 0 {
		out.DataGaps = append(out.DataGaps, "signal carries no supporting evidence")
	}
	if out.Freshness == 0 {
		out.DataGaps = append(out.DataGaps, fmt.Sprintf("reality snapshot is %.0f minutes old", out.StalenessSeconds/60))
	}
	if obs.Status == domain.CorrelationPredictedNotObserved {
		out.DataGaps = append(out.DataGaps, "predicted disruption not yet observed in reality")
	}
	if len(in.Context.ActiveShipments()) == 0 {
		out.DataGaps = append(out.DataGaps, "customer has no active shipments")
	}
	for _, gap := range out.DataGaps {
		out.warn("data gap: " + gap)
	}

	out.Confidence = out.DataQualityScore
	return out, nil
}
