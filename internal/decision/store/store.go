// Package store persists composed decisions so acknowledgement and feedback
// can be attached after the fact.
package store

import (
	"context"

	"riskcast/internal/decision"
)

// Store holds decisions by ID. Save overwrites; Get returns
// sentinel.ErrNotFound for unknown IDs. Expiry is judged by the caller
// against its own clock, so an expired decision is still returned.
type Store interface {
	Save(ctx context.Context, d *decision.DecisionObject) error
	Get(ctx context.Context, decisionID string) (*decision.DecisionObject, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*decision.DecisionObject, error)
}

func clone(d *decision.DecisionObject) *decision.DecisionObject {
	c := *d
	if d.Acknowledgement != nil {
		ack := *d.Acknowledgement
		c.Acknowledgement = &ack
	}
	if d.Feedback != nil {
		fb := *d.Feedback
		c.Feedback = &fb
	}
	return &c
}
