package audit_test

import (
	"context"
	"sync"

	"riskcast/internal/audit"
	"riskcast/internal/audit/store/memory"
)

// corruptingStore serves a memory store's chain with damage applied on read,
// the way a backing table edited outside the ledger would look to Range.
type corruptingStore struct {
	*memory.Store

	mu      sync.Mutex
	edits   map[int64]func(*audit.Record)
	removed map[int64]bool
}

func newCorruptingStore(base *memory.Store) *corruptingStore {
	return &corruptingStore{
		Store:   base,
		edits:   make(map[int64]func(*audit.Record)),
		removed: make(map[int64]bool),
	}
}

// Tamper rewrites record seq whenever it is read. It reports whether seq exists.
func (c *corruptingStore) Tamper(seq int64, fn func(r *audit.Record)) bool {
	if !c.exists(seq) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edits[seq] = fn
	return true
}

// Delete hides record seq from reads. It reports whether seq existed.
func (c *corruptingStore) Delete(seq int64) bool {
	if !c.exists(seq) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removed[seq] = true
	return true
}

func (c *corruptingStore) Range(ctx context.Context, start, end int64) ([]audit.Record, error) {
	recs, err := c.Store.Range(ctx, start, end)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := recs[:0]
	for _, r := range recs {
		if c.removed[r.SequenceNumber] {
			continue
		}
		if fn, ok := c.edits[r.SequenceNumber]; ok {
			fn(&r)
		}
		out = append(out, r)
	}
	return out, nil
}

func (c *corruptingStore) exists(seq int64) bool {
	recs, err := c.Store.Range(context.Background(), seq, seq)
	return err == nil && len(recs) == 1
}

var _ audit.Store = (*corruptingStore)(nil)
