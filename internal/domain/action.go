package domain

import "slices"

// ActionType is a mitigation the customer can take.
type ActionType string

const (
	ActionReroute   ActionType = "REROUTE"
	ActionDelay     ActionType = "DELAY"
	ActionInsure    ActionType = "INSURE"
	ActionMonitor   ActionType = "MONITOR"
	ActionDoNothing ActionType = "DO_NOTHING"
)

// ActionTypes lists every action in a fixed order. Iteration over actions
// always uses this order so ties break deterministically.
var ActionTypes = []ActionType{
	ActionReroute,
	ActionDelay,
	ActionInsure,
	ActionMonitor,
	ActionDoNothing,
}

// Mitigating reports whether the action changes the physical or financial
// outcome, as opposed to watching or accepting it.
func (a ActionType) Mitigating() bool {
	switch a {
	case ActionReroute, ActionDelay, ActionInsure:
		return true
	}
	return false
}

// Valid reports whether a is a known action.
func (a ActionType) Valid() bool {
	return slices.Contains(ActionTypes, a)
}
