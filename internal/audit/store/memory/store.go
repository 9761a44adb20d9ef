// Package memory is an in-process audit store for tests and single-run CLI use.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"riskcast/internal/audit"
	"riskcast/pkg/platform/sentinel"
)

type txKey struct{}

// pending buffers writes made inside RunInTx until fn returns.
type pending struct {
	records    []audit.Record
	snapshots  []audit.InputSnapshot
	processing []audit.ProcessingRecord
}

// Store keeps the chain in a slice ordered by sequence number.
type Store struct {
	mu         sync.RWMutex
	records    []audit.Record
	bySeq      map[int64]int
	snapshots  map[string]audit.InputSnapshot
	processing map[string][]audit.ProcessingRecord
}

func NewStore() *Store {
	return &Store{
		bySeq:      make(map[int64]int),
		snapshots:  make(map[string]audit.InputSnapshot),
		processing: make(map[string][]audit.ProcessingRecord),
	}
}

func txFrom(ctx context.Context) *pending {
	p, _ := ctx.Value(txKey{}).(*pending)
	return p
}

// RunInTx applies fn's writes only if fn succeeds. Nested calls join the
// outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}
	p := &pending{}
	if err := fn(context.WithValue(ctx, txKey{}, p)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range p.records {
		if _, ok := s.bySeq[r.SequenceNumber]; ok {
			return fmt.Errorf("sequence %d: %w", r.SequenceNumber, sentinel.ErrConflict)
		}
	}
	for _, snap := range p.snapshots {
		if _, ok := s.snapshots[snap.SnapshotID]; ok {
			return fmt.Errorf("snapshot %s: %w", snap.SnapshotID, sentinel.ErrConflict)
		}
	}
	for _, r := range p.records {
		s.appendLocked(r)
	}
	for _, snap := range p.snapshots {
		s.snapshots[snap.SnapshotID] = snap
	}
	for _, pr := range p.processing {
		s.processing[pr.SnapshotID] = append(s.processing[pr.SnapshotID], pr)
	}
	return nil
}

func (s *Store) Head(_ context.Context) (audit.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return audit.Record{}, false, nil
	}
	return s.records[len(s.records)-1], true, nil
}

func (s *Store) AppendRecord(ctx context.Context, r audit.Record) error {
	if p := txFrom(ctx); p != nil {
		s.mu.RLock()
		_, exists := s.bySeq[r.SequenceNumber]
		s.mu.RUnlock()
		if exists || slices.ContainsFunc(p.records, func(x audit.Record) bool { return x.SequenceNumber == r.SequenceNumber }) {
			return fmt.Errorf("sequence %d: %w", r.SequenceNumber, sentinel.ErrConflict)
		}
		p.records = append(p.records, r)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bySeq[r.SequenceNumber]; ok {
		return fmt.Errorf("sequence %d: %w", r.SequenceNumber, sentinel.ErrConflict)
	}
	s.appendLocked(r)
	return nil
}

func (s *Store) appendLocked(r audit.Record) {
	r.Payload = slices.Clone(r.Payload)
	s.bySeq[r.SequenceNumber] = len(s.records)
	s.records = append(s.records, r)
}

func (s *Store) Range(_ context.Context, start, end int64) ([]audit.Record, error) {
	return s.filter(func(r audit.Record) bool {
		return r.SequenceNumber >= start && r.SequenceNumber <= end
	}), nil
}

func (s *Store) ByEntity(_ context.Context, entityType, entityID string) ([]audit.Record, error) {
	return s.filter(func(r audit.Record) bool {
		return r.EntityType == entityType && r.EntityID == entityID
	}), nil
}

func (s *Store) ByTimeWindow(_ context.Context, from, to time.Time) ([]audit.Record, error) {
	return s.filter(func(r audit.Record) bool {
		return !r.CreatedAt.Before(from) && r.CreatedAt.Before(to)
	}), nil
}

func (s *Store) ByEventTypes(_ context.Context, types ...audit.EventType) ([]audit.Record, error) {
	return s.filter(func(r audit.Record) bool {
		return slices.Contains(types, r.EventType)
	}), nil
}

func (s *Store) filter(keep func(audit.Record) bool) []audit.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Record
	for _, r := range s.records {
		if keep(r) {
			r.Payload = slices.Clone(r.Payload)
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b audit.Record) int {
		return cmp.Compare(a.SequenceNumber, b.SequenceNumber)
	})
	return out
}

func (s *Store) SaveSnapshot(ctx context.Context, snap audit.InputSnapshot) error {
	if p := txFrom(ctx); p != nil {
		p.snapshots = append(p.snapshots, snap)
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[snap.SnapshotID]; ok {
		return fmt.Errorf("snapshot %s: %w", snap.SnapshotID, sentinel.ErrConflict)
	}
	s.snapshots[snap.SnapshotID] = snap
	return nil
}

func (s *Store) Snapshot(_ context.Context, snapshotID string) (audit.InputSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[snapshotID]
	if !ok {
		return audit.InputSnapshot{}, fmt.Errorf("snapshot %s: %w", snapshotID, sentinel.ErrNotFound)
	}
	return snap, nil
}

func (s *Store) SaveProcessing(ctx context.Context, pr audit.ProcessingRecord) error {
	if p := txFrom(ctx); p != nil {
		p.processing = append(p.processing, pr)
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing[pr.SnapshotID] = append(s.processing[pr.SnapshotID], pr)
	return nil
}

func (s *Store) ProcessingFor(_ context.Context, snapshotID string) ([]audit.ProcessingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.processing[snapshotID]), nil
}

// Len returns the number of records held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

var _ audit.Store = (*Store)(nil)
