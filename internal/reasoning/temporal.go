package reasoning

import (
	"context"
	"fmt"
	"slices"
	"time"

	"riskcast/internal/domain"
)

// Urgency buckets the time left before the decision deadline.
type Urgency string

const (
	UrgencyImmediate Urgency = "immediate"
	UrgencyUrgent    Urgency = "urgent"
	UrgencySoon      Urgency = "soon"
	UrgencyWatch     Urgency = "watch"
)

// ClassifyUrgency buckets the time remaining until a deadline.
func ClassifyUrgency(remaining time.Duration) Urgency {
	switch {
	case remaining <= 6*time.Hour:
		return UrgencyImmediate
	case remaining <= 24*time.Hour:
		return UrgencyUrgent
	case remaining <= 72*time.Hour:
		return UrgencySoon
	default:
		return UrgencyWatch
	}
}

// LeadTimes is how far ahead of impact each action must start.
var LeadTimes = map[domain.ActionType]time.Duration{
	domain.ActionReroute:   48 * time.Hour,
	domain.ActionDelay:     24 * time.Hour,
	domain.ActionInsure:    72 * time.Hour,
	domain.ActionMonitor:   0,
	domain.ActionDoNothing: 0,
}

const (
	defaultDecisionWindow = 72 * time.Hour
	minimumDecisionWindow = 2 * time.Hour
	impactBuffer          = 24 * time.Hour
	departureBuffer       = 48 * time.Hour
)

// TimelineEvent is one point on the decision timeline.
type TimelineEvent struct {
	At    time.Time `json:"at"`
	Label string    `json:"label"`
}

// ActionDeadline is the last moment an action can still be started.
type ActionDeadline struct {
	Action   domain.ActionType `json:"action"`
	LeadTime time.Duration     `json:"lead_time_ns"`
	Deadline time.Time         `json:"deadline"`
	Feasible bool              `json:"feasible"`
}

// TemporalInputs feed the temporal layer.
type TemporalInputs struct {
	Sources
	Factual FactualOutput
}

// TemporalOutput places the decision in time.
type TemporalOutput struct {
	LayerResult
	Timeline         []TimelineEvent  `json:"timeline"`
	ImpactStart      time.Time        `json:"impact_start"`
	ImpactEnd        time.Time        `json:"impact_end"`
	DecisionDeadline time.Time        `json:"decision_deadline"`
	DeadlineFloored  bool             `json:"deadline_floored"`
	HoursToDeadline  float64          `json:"hours_to_deadline"`
	ActionDeadlines  []ActionDeadline `json:"action_deadlines"`
	Urgency          Urgency          `json:"urgency"`
}

// DeadlineFor returns the deadline computed for action.
func (o TemporalOutput) DeadlineFor(action domain.ActionType) (ActionDeadline, bool) {
	for _, d := range o.ActionDeadlines {
		if d.Action == action {
			return d, true
		}
	}
	return ActionDeadline{}, false
}

// TemporalLayer builds the timeline and deadlines.
type TemporalLayer interface {
	Analyze(ctx context.Context, in TemporalInputs) (TemporalOutput, error)
}

type temporalLayer struct{}

// NewTemporalLayer returns the rule-based temporal layer.
func NewTemporalLayer() TemporalLayer {
	return temporalLayer{}
}

func (temporalLayer) Analyze(_ context.Context, in TemporalInputs) (TemporalOutput, error) {
	ref := in.ReferenceTime
	start, end := in.Signal.ImpactWindow()
	out := TemporalOutput{
		LayerResult: LayerResult{Layer: LayerTemporal, Confidence: 0.9},
		ImpactStart: start,
		ImpactEnd:   end,
	}
	if in.Signal.ImpactEnd.IsZero() {
		out.Confidence = 0.8
	}

	out.Timeline = append(out.Timeline,
		TimelineEvent{At: ref, Label: "decision reference time"},
		TimelineEvent{At: in.Reality.ObservedAt, Label: fmt.Sprintf("reality observed at %s (%s)", in.Reality.Chokepoint, in.Reality.Status)},
		TimelineEvent{At: start, Label: "predicted impact start"},
		TimelineEvent{At: end, Label: "predicted impact end"},
	)
	if !in.Signal.DetectedAt.IsZero() {
		out.Timeline = append(out.Timeline, TimelineEvent{At: in.Signal.DetectedAt, Label: "signal detected"})
	}

	deadline := ref.Add(defaultDecisionWindow)
	if d := start.Add(-impactBuffer); d.Before(deadline) {
		deadline = d
	}
	for _, sh := range in.chokepointShipments() {
		out.Timeline = append(out.Timeline,
			TimelineEvent{At: sh.ETD, Label: "shipment " + sh.ShipmentID + " departs " + sh.Origin},
			TimelineEvent{At: sh.ETA, Label: "shipment " + sh.ShipmentID + " arrives " + sh.Destination},
		)
		if sh.HasDeparted(ref) {
			continue
		}
		if d := sh.ETD.Add(-departureBuffer); d.Before(deadline) {
			deadline = d
		}
	}
	if floor := ref.Add(minimumDecisionWindow); deadline.Before(floor) {
		deadline = floor
		out.DeadlineFloored = true
		out.Confidence -= 0.1
		out.warn("decision window compressed to the 2h minimum")
	}
	slices.SortStableFunc(out.Timeline, func(a, b TimelineEvent) int {
		return a.At.Compare(b.At)
	})

	out.DecisionDeadline = deadline
	out.HoursToDeadline = round(deadline.Sub(ref).Hours(), 2)
	out.Urgency = ClassifyUrgency(deadline.Sub(ref))

	for _, action := range domain.ActionTypes {
		lead := LeadTimes[action]
		d := start.Add(-lead)
		feasible := d.After(ref)
		if action == domain.ActionDoNothing {
			feasible = true
		}
		out.ActionDeadlines = append(out.ActionDeadlines, ActionDeadline{
			Action:   action,
			LeadTime: lead,
			Deadline: d,
			Feasible: feasible,
		})
	}

	if !start.After(ref) {
		out.warn("disruption is already underway")
	}
	return out, nil
}
