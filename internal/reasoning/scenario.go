package reasoning

import (
	"fmt"

	"riskcast/internal/domain"
)

// Scenario is a kind of disruption with its own causal template.
type Scenario string

const (
	ScenarioChokepointDisruption Scenario = "chokepoint_disruption"
	ScenarioWeather              Scenario = "weather"
	ScenarioPortCongestion       Scenario = "port_congestion"
	ScenarioLaborAction          Scenario = "labor_action"
	ScenarioGeneric              Scenario = "generic"
)

// Scenarios lists every scenario kind.
var Scenarios = []Scenario{
	ScenarioChokepointDisruption,
	ScenarioWeather,
	ScenarioPortCongestion,
	ScenarioLaborAction,
	ScenarioGeneric,
}

// SelectScenario picks the scenario that best explains sig.
func SelectScenario(sig domain.Signal) Scenario {
	switch sig.Category {
	case domain.CategoryWeather:
		return ScenarioWeather
	case domain.CategoryCongestion:
		return ScenarioPortCongestion
	case domain.CategoryLabor:
		return ScenarioLaborAction
	}
	if sig.Chokepoint.IsKnown() {
		return ScenarioChokepointDisruption
	}
	return ScenarioGeneric
}

// LinkTemplate is an unweighted cause→effect edge.
type LinkTemplate struct {
	Cause        string
	Effect       string
	BaseStrength float64
}

// Intervention is a point in the chain where an action breaks it.
type Intervention struct {
	Action        domain.ActionType `json:"action"`
	Description   string            `json:"description"`
	Effectiveness float64           `json:"effectiveness"`
}

// Template is the causal model for one scenario.
type Template struct {
	Scenario      Scenario
	RootCauses    []string
	Links         []LinkTemplate
	Interventions []Intervention
	Confounders   []string
}

// TemplateFunc builds a template for a concrete signal.
type TemplateFunc func(sig domain.Signal) Template

// Registry maps scenarios to their templates.
type Registry struct {
	templates map[Scenario]TemplateFunc
}

// NewRegistry returns a registry holding the built-in templates.
func NewRegistry() *Registry {
	r := &Registry{templates: make(map[Scenario]TemplateFunc, len(Scenarios))}
	r.Register(ScenarioChokepointDisruption, chokepointTemplate)
	r.Register(ScenarioWeather, weatherTemplate)
	r.Register(ScenarioPortCongestion, congestionTemplate)
	r.Register(ScenarioLaborAction, laborTemplate)
	r.Register(ScenarioGeneric, genericTemplate)
	return r
}

// Register installs or replaces the template for s.
func (r *Registry) Register(s Scenario, fn TemplateFunc) {
	r.templates[s] = fn
}

// Template builds the template for s, falling back to the generic one.
func (r *Registry) Template(s Scenario, sig domain.Signal) (Template, bool) {
	if fn, ok := r.templates[s]; ok {
		return fn(sig), true
	}
	if fn, ok := r.templates[ScenarioGeneric]; ok {
		return fn(sig), false
	}
	return Template{}, false
}

func chokepointTemplate(sig domain.Signal) Template {
	c := sig.Chokepoint
	diversion := fmt.Sprintf("carriers divert around %s", c)
	delay := "longer voyages and transit delay"
	return Template{
		Scenario:   ScenarioChokepointDisruption,
		RootCauses: []string{fmt.Sprintf("%s disruption affecting %s transits", sig.Category, c)},
		Links: []LinkTemplate{
			{Cause: fmt.Sprintf("%s transit risk", c), Effect: diversion, BaseStrength: 0.90},
			{Cause: diversion, Effect: delay, BaseStrength: 0.90},
			{Cause: delay, Effect: "higher freight rates and holding costs", BaseStrength: 0.85},
		},
		Interventions: []Intervention{
			{Action: domain.ActionReroute, Description: "book capacity on an alternative route before carriers fill it", Effectiveness: 0.80},
			{Action: domain.ActionInsure, Description: "extend cargo cover for delay and war risk", Effectiveness: 0.50},
			{Action: domain.ActionDelay, Description: "hold cargo at origin until transits normalise", Effectiveness: 0.45},
			{Action: domain.ActionMonitor, Description: "track carrier advisories daily", Effectiveness: 0.05},
		},
		Confounders: []string{"seasonal peak demand", "carrier blank sailings", "bunker fuel price movements"},
	}
}

func weatherTemplate(sig domain.Signal) Template {
	closure := fmt.Sprintf("port and transit closures near %s", sig.Chokepoint)
	return Template{
		Scenario:   ScenarioWeather,
		RootCauses: []string{fmt.Sprintf("severe weather near %s", sig.Chokepoint)},
		Links: []LinkTemplate{
			{Cause: "severe weather", Effect: closure, BaseStrength: 0.80},
			{Cause: closure, Effect: "vessel queues build up", BaseStrength: 0.80},
			{Cause: "vessel queues build up", Effect: "schedule delay", BaseStrength: 0.85},
		},
		Interventions: []Intervention{
			{Action: domain.ActionDelay, Description: "hold departures until the weather window passes", Effectiveness: 0.60},
			{Action: domain.ActionReroute, Description: "route away from the affected basin", Effectiveness: 0.50},
			{Action: domain.ActionInsure, Description: "confirm weather delay cover", Effectiveness: 0.40},
			{Action: domain.ActionMonitor, Description: "track forecast updates", Effectiveness: 0.10},
		},
		Confounders: []string{"forecast uncertainty", "port productivity"},
	}
}

func congestionTemplate(sig domain.Signal) Template {
	return Template{
		Scenario:   ScenarioPortCongestion,
		RootCauses: []string{fmt.Sprintf("berth congestion around %s", sig.Chokepoint)},
		Links: []LinkTemplate{
			{Cause: "berth congestion", Effect: "vessels wait at anchor", BaseStrength: 0.85},
			{Cause: "vessels wait at anchor", Effect: "schedule delay", BaseStrength: 0.85},
			{Cause: "schedule delay", Effect: "demurrage and holding costs", BaseStrength: 0.80},
		},
		Interventions: []Intervention{
			{Action: domain.ActionReroute, Description: "switch to a less congested port", Effectiveness: 0.55},
			{Action: domain.ActionDelay, Description: "push bookings to a later sailing", Effectiveness: 0.40},
			{Action: domain.ActionInsure, Description: "cover demurrage exposure", Effectiveness: 0.30},
			{Action: domain.ActionMonitor, Description: "watch queue lengths", Effectiveness: 0.10},
		},
		Confounders: []string{"terminal equipment outages", "import demand surges"},
	}
}

func laborTemplate(sig domain.Signal) Template {
	return Template{
		Scenario:   ScenarioLaborAction,
		RootCauses: []string{fmt.Sprintf("labor action affecting %s", sig.Chokepoint)},
		Links: []LinkTemplate{
			{Cause: "strike or work-to-rule", Effect: "port operations slow down", BaseStrength: 0.85},
			{Cause: "port operations slow down", Effect: "cargo backlog", BaseStrength: 0.80},
			{Cause: "cargo backlog", Effect: "schedule delay", BaseStrength: 0.85},
		},
		Interventions: []Intervention{
			{Action: domain.ActionReroute, Description: "move cargo through an unaffected port", Effectiveness: 0.70},
			{Action: domain.ActionDelay, Description: "wait for the dispute to settle", Effectiveness: 0.35},
			{Action: domain.ActionInsure, Description: "check strike clauses in cover", Effectiveness: 0.35},
			{Action: domain.ActionMonitor, Description: "follow negotiations", Effectiveness: 0.10},
		},
		Confounders: []string{"negotiation outcome", "government intervention"},
	}
}

func genericTemplate(sig domain.Signal) Template {
	return Template{
		Scenario:   ScenarioGeneric,
		RootCauses: []string{fmt.Sprintf("%s disruption at %s", sig.Category, sig.Chokepoint)},
		Links: []LinkTemplate{
			{Cause: "disruption", Effect: "transit delay", BaseStrength: 0.70},
			{Cause: "transit delay", Effect: "added logistics cost", BaseStrength: 0.70},
		},
		Interventions: []Intervention{
			{Action: domain.ActionReroute, Description: "consider an alternative route", Effectiveness: 0.50},
			{Action: domain.ActionInsure, Description: "review cargo cover", Effectiveness: 0.40},
			{Action: domain.ActionDelay, Description: "consider a later departure", Effectiveness: 0.30},
			{Action: domain.ActionMonitor, Description: "monitor developments", Effectiveness: 0.20},
		},
		Confounders: []string{"unidentified drivers"},
	}
}
