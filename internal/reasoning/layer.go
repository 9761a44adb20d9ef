package reasoning

import (
	"math"
	"time"

	"riskcast/internal/domain"
)

// LayerName identifies one of the six reasoning layers.
type LayerName string

const (
	LayerFactual        LayerName = "factual"
	LayerTemporal       LayerName = "temporal"
	LayerCausal         LayerName = "causal"
	LayerCounterfactual LayerName = "counterfactual"
	LayerStrategic      LayerName = "strategic"
	LayerMeta           LayerName = "meta"
)

// Layers lists the layers in execution order.
var Layers = []LayerName{
	LayerFactual,
	LayerTemporal,
	LayerCausal,
	LayerCounterfactual,
	LayerStrategic,
	LayerMeta,
}

// LayerResult is the part every layer output shares.
type LayerResult struct {
	Layer      LayerName     `json:"layer"`
	Confidence float64       `json:"confidence"`
	Warnings   []string      `json:"warnings,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
}

func (r *LayerResult) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Sources carries the validated raw inputs into every layer.
type Sources struct {
	Signal        domain.Signal
	Reality       domain.Reality
	Context       domain.CustomerContext
	ReferenceTime time.Time
}

// chokepointShipments returns active shipments routed through the signal chokepoint.
func (s Sources) chokepointShipments() []domain.Shipment {
	var out []domain.Shipment
	for _, sh := range s.Context.ActiveShipments() {
		if sh.PassesThrough(s.Signal.Chokepoint) {
			out = append(out, sh)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(v, 0), 1)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
