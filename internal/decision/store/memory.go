package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"riskcast/internal/decision"
	"riskcast/pkg/platform/sentinel"
)

// InMemoryStore keeps decisions in process memory.
type InMemoryStore struct {
	mu        sync.RWMutex
	decisions map[string]*decision.DecisionObject
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{decisions: make(map[string]*decision.DecisionObject)}
}

func (s *InMemoryStore) Save(_ context.Context, d *decision.DecisionObject) error {
	if d == nil || d.DecisionID == "" {
		return fmt.Errorf("save decision: missing decision id: %w", sentinel.ErrInvalidState)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions[d.DecisionID] = clone(d)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, decisionID string) (*decision.DecisionObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.decisions[decisionID]
	if !ok {
		return nil, fmt.Errorf("decision %s: %w", decisionID, sentinel.ErrNotFound)
	}
	return clone(d), nil
}

// ListByCustomer returns the customer's decisions, newest first.
func (s *InMemoryStore) ListByCustomer(_ context.Context, customerID string) ([]*decision.DecisionObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*decision.DecisionObject
	for _, d := range s.decisions {
		if d.CustomerID == customerID {
			out = append(out, clone(d))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(ds []*decision.DecisionObject) {
	slices.SortFunc(ds, func(a, b *decision.DecisionObject) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.DecisionID, b.DecisionID)
	})
}
