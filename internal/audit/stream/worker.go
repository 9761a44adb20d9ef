// Package stream forwards appended ledger records to an external sink.
//
// The ledger is the system of record; the stream is best effort. Publish never
// blocks the ledger: records are queued in a bounded ring buffer and a single
// worker goroutine drains it in batches. When the sink keeps failing, a
// circuit breaker opens and batches are dropped (and counted) until a probe
// succeeds.
package stream

import (
	"context"
	"log/slog"
	"time"

	"riskcast/internal/audit"
	"riskcast/internal/audit/metrics"
	"riskcast/pkg/platform/circuit"
)

const (
	defaultBatchSize     = 100
	defaultFlushInterval = 500 * time.Millisecond
	defaultDrainTimeout  = 5 * time.Second

	reasonBufferFull    = "buffer_full"
	reasonCircuitOpen   = "circuit_open"
	reasonPublishFailed = "publish_failed"
)

// Worker implements audit.Publisher.
type Worker struct {
	sink          Sink
	buffer        *RingBuffer
	breaker       *circuit.Breaker
	logger        *slog.Logger
	metrics       *metrics.Metrics
	batchSize     int
	flushInterval time.Duration
	drainTimeout  time.Duration

	wake chan struct{}
}

// Option configures a Worker.
type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// WithBreaker replaces the default breaker (5 failures, 30s cooldown).
func WithBreaker(b *circuit.Breaker) Option {
	return func(w *Worker) {
		if b != nil {
			w.breaker = b
		}
	}
}

// WithBufferSize bounds the number of queued records.
func WithBufferSize(n int) Option {
	return func(w *Worker) {
		w.buffer = NewRingBuffer(n)
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.flushInterval = d
		}
	}
}

// WithDrainTimeout bounds the final flush after Run's context is cancelled.
func WithDrainTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.drainTimeout = d
		}
	}
}

// NewWorker creates a Worker publishing to sink. Call Run to start it.
func NewWorker(sink Sink, opts ...Option) *Worker {
	w := &Worker{
		sink:          sink,
		buffer:        NewRingBuffer(defaultCapacity),
		breaker:       circuit.New("audit_stream", circuit.WithCooldown(30*time.Second)),
		logger:        slog.Default(),
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		drainTimeout:  defaultDrainTimeout,
		wake:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Publish queues rec without blocking.
func (w *Worker) Publish(rec audit.Record) {
	if w.buffer.Enqueue(rec) {
		w.metrics.AddDropped(reasonBufferFull, 1)
	}
	if w.buffer.Len() >= w.batchSize {
		select {
		case w.wake <- struct{}{}:
		default:
		}
	}
}

// Pending returns the number of queued records.
func (w *Worker) Pending() int {
	return w.buffer.Len()
}

// Run drains the buffer until ctx is cancelled, then makes a final bounded
// attempt to flush what is left. It always returns nil after cancellation.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.drainTimeout)
			w.flushAll(drainCtx)
			cancel()
			return nil
		case <-ticker.C:
			w.flushAll(ctx)
		case <-w.wake:
			w.flushAll(ctx)
		}
	}
}

func (w *Worker) flushAll(ctx context.Context) {
	for ctx.Err() == nil {
		batch := w.buffer.DequeueBatch(w.batchSize)
		if len(batch) == 0 {
			return
		}
		w.flush(ctx, batch)
	}
}

func (w *Worker) flush(ctx context.Context, batch []audit.Record) {
	if !w.breaker.Allow() {
		w.metrics.AddDropped(reasonCircuitOpen, len(batch))
		return
	}

	err := w.sink.Publish(ctx, batch)
	if err != nil {
		w.metrics.IncStreamFailures()
		w.metrics.AddDropped(reasonPublishFailed, len(batch))
		_, change := w.breaker.RecordFailure()
		if change.Opened {
			w.metrics.SetBreakerState(true)
			w.logger.WarnContext(ctx, "audit stream circuit opened",
				"breaker", w.breaker.Name(),
				"error", err,
			)
			return
		}
		w.logger.ErrorContext(ctx, "audit stream publish failed",
			"first_sequence", batch[0].SequenceNumber,
			"records", len(batch),
			"error", err,
		)
		return
	}

	w.metrics.AddPublished(len(batch))
	if _, change := w.breaker.RecordSuccess(); change.Closed {
		w.metrics.SetBreakerState(false)
		w.logger.InfoContext(ctx, "audit stream circuit closed", "breaker", w.breaker.Name())
	}
}

var _ audit.Publisher = (*Worker)(nil)
