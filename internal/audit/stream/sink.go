package stream

import (
	"context"

	"riskcast/internal/audit"
)

// Sink receives batches of ledger records in sequence order.
type Sink interface {
	Publish(ctx context.Context, records []audit.Record) error
	Close() error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, records []audit.Record) error

func (f SinkFunc) Publish(ctx context.Context, records []audit.Record) error {
	return f(ctx, records)
}

func (f SinkFunc) Close() error { return nil }
