package audit

import (
	"context"
	"time"
)

// Store persists ledger data. Implementations must reject a record whose
// sequence number already exists with sentinel.ErrConflict, and return
// sentinel.ErrNotFound for unknown snapshots.
//
// RunInTx runs fn so that every write made through the ctx it receives
// commits or rolls back together.
type Store interface {
	Head(ctx context.Context) (Record, bool, error)
	AppendRecord(ctx context.Context, r Record) error
	Range(ctx context.Context, start, end int64) ([]Record, error)
	ByEntity(ctx context.Context, entityType, entityID string) ([]Record, error)
	ByTimeWindow(ctx context.Context, from, to time.Time) ([]Record, error)
	ByEventTypes(ctx context.Context, types ...EventType) ([]Record, error)

	SaveSnapshot(ctx context.Context, s InputSnapshot) error
	Snapshot(ctx context.Context, snapshotID string) (InputSnapshot, error)

	SaveProcessing(ctx context.Context, p ProcessingRecord) error
	ProcessingFor(ctx context.Context, snapshotID string) ([]ProcessingRecord, error)

	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Publisher receives every record once it is durably appended, in sequence
// order. Publish must not block.
type Publisher interface {
	Publish(r Record)
}
