package reasoning

import (
	"context"
	"fmt"
	"math"

	"riskcast/internal/domain"
)

// CounterfactualScenario is one imagined outcome of the disruption.
type CounterfactualScenario string

const (
	ScenarioNonEvent    CounterfactualScenario = "non_event"
	ScenarioBase        CounterfactualScenario = "base"
	ScenarioOptimistic  CounterfactualScenario = "optimistic"
	ScenarioPessimistic CounterfactualScenario = "pessimistic"
	ScenarioTail        CounterfactualScenario = "tail"
)

var counterfactualScenarios = []CounterfactualScenario{
	ScenarioNonEvent,
	ScenarioBase,
	ScenarioOptimistic,
	ScenarioPessimistic,
	ScenarioTail,
}

// severity is the loss multiplier of each scenario relative to the base case.
var severity = map[CounterfactualScenario]float64{
	ScenarioNonEvent:    0,
	ScenarioBase:        1,
	ScenarioOptimistic:  0.5,
	ScenarioPessimistic: 1.5,
	ScenarioTail:        2.5,
}

// share of the event probability each event scenario receives
var eventShare = map[CounterfactualScenario]float64{
	ScenarioBase:        0.5,
	ScenarioOptimistic:  0.2,
	ScenarioPessimistic: 0.2,
	ScenarioTail:        0.1,
}

// effectiveness is the fraction of scenario loss an action avoids.
var effectiveness = map[domain.ActionType]map[CounterfactualScenario]float64{
	domain.ActionReroute: {ScenarioOptimistic: 0.85, ScenarioBase: 0.85, ScenarioPessimistic: 0.75, ScenarioTail: 0.60},
	domain.ActionDelay:   {ScenarioOptimistic: 0.60, ScenarioBase: 0.50, ScenarioPessimistic: 0.35, ScenarioTail: 0.20},
	domain.ActionInsure:  {ScenarioOptimistic: 0.50, ScenarioBase: 0.50, ScenarioPessimistic: 0.50, ScenarioTail: 0.50},
	domain.ActionMonitor: {ScenarioOptimistic: 0.10, ScenarioBase: 0.10, ScenarioPessimistic: 0.05, ScenarioTail: 0.05},
}

// actionCost is the fixed cost of each action on the normalised loss scale.
var actionCost = map[domain.ActionType]float64{
	domain.ActionReroute:   25,
	domain.ActionDelay:     10,
	domain.ActionInsure:    8,
	domain.ActionMonitor:   1,
	domain.ActionDoNothing: 0,
}

// normalisedLoss is the loss of the base scenario when nothing is done.
const normalisedLoss = 100.0

// probabilityShift adjusts the signal probability by what reality shows.
var probabilityShift = map[domain.CorrelationStatus]float64{
	domain.CorrelationConfirmed:            0.10,
	domain.CorrelationMaterializing:        0.05,
	domain.CorrelationSurprise:             0.05,
	domain.CorrelationPredictedNotObserved: -0.15,
	domain.CorrelationNormal:               -0.10,
}

// AdjustedProbability folds the reality correlation into the signal probability.
func AdjustedProbability(p float64, status domain.CorrelationStatus) float64 {
	return round(math.Min(math.Max(p+probabilityShift[status], 0.01), 0.99), 4)
}

// Effectiveness returns the loss fraction action avoids in scenario s.
func Effectiveness(action domain.ActionType, s CounterfactualScenario) float64 {
	return effectiveness[action][s]
}

// WeightedScenario is a scenario with its probability weight.
type WeightedScenario struct {
	Scenario CounterfactualScenario `json:"scenario"`
	Weight   float64                `json:"weight"`
	Severity float64                `json:"severity"`
}

// RegretRow holds one action's regret in every scenario, in scenario order.
type RegretRow struct {
	Action         domain.ActionType `json:"action"`
	Cost           float64           `json:"cost"`
	Regrets        []float64         `json:"regrets"`
	ExpectedRegret float64           `json:"expected_regret"`
	MaxRegret      float64           `json:"max_regret"`
	Feasible       bool              `json:"feasible"`
}

// CounterfactualInputs feed the counterfactual layer.
type CounterfactualInputs struct {
	Sources
	Factual  FactualOutput
	Temporal TemporalOutput
	Causal   CausalOutput
}

// CounterfactualOutput compares actions across imagined outcomes.
type CounterfactualOutput struct {
	LayerResult
	BaseProbability     float64            `json:"base_probability"`
	AdjustedProbability float64            `json:"adjusted_probability"`
	Scenarios           []WeightedScenario `json:"scenarios"`
	RegretMatrix        []RegretRow        `json:"regret_matrix"`
	RobustAction        domain.ActionType  `json:"robust_action"`
	MinimaxAction       domain.ActionType  `json:"minimax_action"`
	Robustness          float64            `json:"robustness"`
}

// Row returns the regret row for action.
func (o CounterfactualOutput) Row(action domain.ActionType) (RegretRow, bool) {
	for _, r := range o.RegretMatrix {
		if r.Action == action {
			return r, true
		}
	}
	return RegretRow{}, false
}

// CounterfactualLayer evaluates actions against alternative futures.
type CounterfactualLayer interface {
	Evaluate(ctx context.Context, in CounterfactualInputs) (CounterfactualOutput, error)
}

type counterfactualLayer struct{}

// NewCounterfactualLayer returns the regret-based counterfactual layer.
func NewCounterfactualLayer() CounterfactualLayer {
	return counterfactualLayer{}
}

func (counterfactualLayer) Evaluate(_ context.Context, in CounterfactualInputs) (CounterfactualOutput, error) {
	p := AdjustedProbability(in.Signal.Probability, in.Reality.Status)
	out := CounterfactualOutput{
		LayerResult:         LayerResult{Layer: LayerCounterfactual},
		BaseProbability:     in.Signal.Probability,
		AdjustedProbability: p,
	}

	for _, s := range counterfactualScenarios {
		w := 1 - p
		if s != ScenarioNonEvent {
			w = eventShare[s] * p
		}
		out.Scenarios = append(out.Scenarios, WeightedScenario{Scenario: s, Weight: round(w, 4), Severity: severity[s]})
	}

	// outcome[a][s] = cost(a) + loss(s) * (1 - effectiveness(a, s))
	outcomes := make([][]float64, len(domain.ActionTypes))
	best := make([]float64, len(counterfactualScenarios))
	for j := range best {
		best[j] = math.Inf(1)
	}
	for i, a := range domain.ActionTypes {
		outcomes[i] = make([]float64, len(counterfactualScenarios))
		for j, s := range counterfactualScenarios {
			loss := normalisedLoss * severity[s]
			outcomes[i][j] = actionCost[a] + loss*(1-Effectiveness(a, s))
			best[j] = math.Min(best[j], outcomes[i][j])
		}
	}

	var maxRegret float64
	for i, a := range domain.ActionTypes {
		row := RegretRow{Action: a, Cost: actionCost[a], Feasible: true}
		if d, ok := in.Temporal.DeadlineFor(a); ok {
			row.Feasible = d.Feasible
		}
		for j, ws := range out.Scenarios {
			r := round(outcomes[i][j]-best[j], 4)
			row.Regrets = append(row.Regrets, r)
			row.ExpectedRegret += ws.Weight * r
			row.MaxRegret = math.Max(row.MaxRegret, r)
		}
		row.ExpectedRegret = round(row.ExpectedRegret, 4)
		maxRegret = math.Max(maxRegret, row.MaxRegret)
		out.RegretMatrix = append(out.RegretMatrix, row)
	}

	var robust, minimax *RegretRow
	for i := range out.RegretMatrix {
		row := &out.RegretMatrix[i]
		if !row.Feasible {
			continue
		}
		if robust == nil || row.ExpectedRegret < robust.ExpectedRegret {
			robust = row
		}
		if minimax == nil || row.MaxRegret < minimax.MaxRegret {
			minimax = row
		}
	}
	// do_nothing is always feasible so both are set
	out.RobustAction = robust.Action
	out.MinimaxAction = minimax.Action
	out.Robustness = robustness(*robust, out.Scenarios, maxRegret)
	out.Confidence = out.Robustness

	for _, row := range out.RegretMatrix {
		if !row.Feasible && row.Action.Mitigating() {
			out.warn(fmt.Sprintf("%s can no longer be completed before impact", row.Action))
		}
	}
	if out.RobustAction != out.MinimaxAction {
		out.warn(fmt.Sprintf("robust action %s differs from minimax action %s", out.RobustAction, out.MinimaxAction))
	}
	return out, nil
}

// robustness is 1 minus the weighted regret variance of row, normalised by
// the largest possible variance of values in [0, maxRegret].
func robustness(row RegretRow, scenarios []WeightedScenario, maxRegret float64) float64 {
	if maxRegret == 0 {
		return 1
	}
	var mean, sq float64
	for j, ws := range scenarios {
		mean += ws.Weight * row.Regrets[j]
		sq += ws.Weight * row.Regrets[j] * row.Regrets[j]
	}
	variance := math.Max(sq-mean*mean, 0)
	return round(clamp01(1-variance/(maxRegret*maxRegret/4)), 4)
}
