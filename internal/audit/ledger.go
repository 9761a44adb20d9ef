package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"riskcast/internal/audit/metrics"
	"riskcast/internal/domain"
	"riskcast/pkg/platform/canonical"
	"riskcast/pkg/platform/sentinel"
	"riskcast/pkg/requestcontext"
)

// ErrInvalidRange is returned for a verification range with end < start.
var ErrInvalidRange = errors.New("invalid sequence range")

// Entry is what a caller asks the ledger to record.
type Entry struct {
	EventType  EventType
	EntityType string
	EntityID   string
	Payload    any
}

// Ledger owns the chain head. All appends go through one Ledger per store;
// its mutex is the only writer coordination.
type Ledger struct {
	store     Store
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher Publisher
	newID     func() string
	clock     func() time.Time

	mu       sync.Mutex
	loaded   bool
	nextSeq  int64
	lastHash string
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

// WithPublisher streams every appended record to p.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) {
		l.publisher = p
	}
}

// WithClock sets the clock that stamps CreatedAt on records and processing
// records.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithIDGenerator overrides record and snapshot ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(l *Ledger) {
		if fn != nil {
			l.newID = fn
		}
	}
}

// NewLedger creates a Ledger over store. The head is loaded lazily on the
// first append.
func NewLedger(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		logger: slog.Default(),
		newID:  uuid.NewString,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append adds one record to the chain.
func (l *Ledger) Append(ctx context.Context, e Entry) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	started := time.Now()
	rec, err := l.appendLocked(ctx, e)
	if err != nil {
		return Record{}, err
	}
	l.advance(rec, time.Since(started))
	return rec, nil
}

// CaptureSnapshot freezes the inputs of a decision attempt and records
// DECISION_INPUT_CAPTURED in the same transaction.
func (l *Ledger) CaptureSnapshot(ctx context.Context, sig domain.Signal, obs domain.Reality, cc domain.CustomerContext) (InputSnapshot, Record, error) {
	snap, err := NewInputSnapshot(l.newID(), sig, obs, cc, requestcontext.Now(ctx))
	if err != nil {
		return InputSnapshot{}, Record{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	started := time.Now()
	if err := l.loadHead(ctx); err != nil {
		return InputSnapshot{}, Record{}, err
	}
	var rec Record
	err = l.store.RunInTx(ctx, func(txCtx context.Context) error {
		if serr := l.store.SaveSnapshot(txCtx, snap); serr != nil {
			return fmt.Errorf("save snapshot: %w", serr)
		}
		var aerr error
		rec, aerr = l.appendLocked(txCtx, Entry{
			EventType:  EventDecisionInputCaptured,
			EntityType: EntitySnapshot,
			EntityID:   snap.SnapshotID,
			Payload: snapshotCaptured{
				SnapshotID:   snap.SnapshotID,
				CustomerID:   snap.CustomerID,
				SignalID:     snap.SignalID,
				SignalHash:   snap.SignalHash,
				RealityHash:  snap.RealityHash,
				ContextHash:  snap.ContextHash,
				CombinedHash: snap.CombinedHash,
			},
		})
		return aerr
	})
	if err != nil {
		return InputSnapshot{}, Record{}, fmt.Errorf("capture snapshot: %w", err)
	}
	l.advance(rec, time.Since(started))
	return snap, rec, nil
}

// appendLocked builds and persists the next record without moving the head.
// The caller holds l.mu and calls advance once the write is durable.
func (l *Ledger) appendLocked(ctx context.Context, e Entry) (Record, error) {
	if !e.EventType.Valid() {
		return Record{}, fmt.Errorf("append: unknown event type %q", e.EventType)
	}
	if err := l.loadHead(ctx); err != nil {
		return Record{}, err
	}
	payload, err := canonical.Bytes(e.Payload)
	if err != nil {
		return Record{}, fmt.Errorf("append %s: %w", e.EventType, err)
	}

	rec := Record{
		RecordID:       l.newID(),
		SequenceNumber: l.nextSeq,
		PreviousHash:   l.lastHash,
		PayloadHash:    canonical.HashBytes(payload),
		EventType:      e.EventType,
		EntityType:     e.EntityType,
		EntityID:       e.EntityID,
		Payload:        payload,
		CreatedAt:      l.clock().UTC(),
	}
	if rec.RecordHash, err = RecordHash(rec.SequenceNumber, rec.PreviousHash, rec.PayloadHash); err != nil {
		return Record{}, fmt.Errorf("append %s: %w", e.EventType, err)
	}

	if err := l.store.AppendRecord(ctx, rec); err != nil {
		l.metrics.IncAppendFailures()
		if errors.Is(err, sentinel.ErrConflict) {
			// someone else moved the head; reload before the next append
			l.loaded = false
		}
		l.logger.ErrorContext(ctx, "audit append failed",
			"event_type", e.EventType,
			"sequence_number", rec.SequenceNumber,
			"error", err,
		)
		return Record{}, fmt.Errorf("append %s at sequence %d: %w", e.EventType, rec.SequenceNumber, err)
	}
	return rec, nil
}

func (l *Ledger) advance(rec Record, held time.Duration) {
	l.nextSeq = rec.SequenceNumber + 1
	l.lastHash = rec.RecordHash
	l.metrics.ObserveAppend(string(rec.EventType), rec.SequenceNumber, held)
	if l.publisher != nil {
		l.publisher.Publish(rec)
	}
}

func (l *Ledger) loadHead(ctx context.Context) error {
	if l.loaded {
		return nil
	}
	head, ok, err := l.store.Head(ctx)
	if err != nil {
		return fmt.Errorf("load chain head: %w", err)
	}
	if ok {
		l.nextSeq = head.SequenceNumber + 1
		l.lastHash = head.RecordHash
	} else {
		l.nextSeq = 0
		l.lastHash = GenesisHash
	}
	l.loaded = true
	return nil
}

// Head returns the latest record, if any.
func (l *Ledger) Head(ctx context.Context) (Record, bool, error) {
	return l.store.Head(ctx)
}

// VerifyChainIntegrity walks records start..end inclusive. A negative end
// means the current head. It reports the first violation and never repairs.
func (l *Ledger) VerifyChainIntegrity(ctx context.Context, start, end int64) (VerificationResult, error) {
	if start < 0 {
		start = 0
	}
	if end < 0 {
		head, ok, err := l.store.Head(ctx)
		if err != nil {
			return VerificationResult{}, fmt.Errorf("verify chain: %w", err)
		}
		if !ok {
			l.metrics.IncVerification("valid")
			return VerificationResult{Valid: true, Start: start, End: -1}, nil
		}
		end = head.SequenceNumber
	}
	if end < start {
		return VerificationResult{}, fmt.Errorf("verify chain %d..%d: %w", start, end, ErrInvalidRange)
	}

	prevHash := GenesisHash
	if start > 0 {
		prev, err := l.store.Range(ctx, start-1, start-1)
		if err != nil {
			return VerificationResult{}, fmt.Errorf("verify chain: %w", err)
		}
		if len(prev) == 0 {
			res := VerificationResult{Start: start, End: end, Violation: &Violation{
				Kind:           ViolationSequenceGap,
				SequenceNumber: start - 1,
				Detail:         fmt.Sprintf("record %d missing", start-1),
			}}
			l.report(ctx, res)
			return res, nil
		}
		prevHash = prev[0].RecordHash
	}

	records, err := l.store.Range(ctx, start, end)
	if err != nil {
		return VerificationResult{}, fmt.Errorf("verify chain: %w", err)
	}
	res := verifyChain(records, start, end, prevHash)
	l.report(ctx, res)
	return res, nil
}

func (l *Ledger) report(ctx context.Context, res VerificationResult) {
	if res.Valid {
		l.metrics.IncVerification("valid")
		return
	}
	l.metrics.IncVerification(string(res.Violation.Kind))
	l.logger.WarnContext(ctx, "audit chain violation",
		"kind", res.Violation.Kind,
		"sequence_number", res.Violation.SequenceNumber,
		"detail", res.Violation.Detail,
	)
}

// Snapshot loads a captured snapshot.
func (l *Ledger) Snapshot(ctx context.Context, snapshotID string) (InputSnapshot, error) {
	return l.store.Snapshot(ctx, snapshotID)
}

// VerifySnapshot recomputes the snapshot's hashes and checks them against
// the DECISION_INPUT_CAPTURED record that announced it.
func (l *Ledger) VerifySnapshot(ctx context.Context, snapshotID string) (bool, error) {
	snap, err := l.store.Snapshot(ctx, snapshotID)
	if err != nil {
		return false, err
	}
	if !snap.Verify() {
		return false, nil
	}
	recs, err := l.store.ByEntity(ctx, EntitySnapshot, snapshotID)
	if err != nil {
		return false, err
	}
	for _, r := range recs {
		if r.EventType != EventDecisionInputCaptured {
			continue
		}
		var announced snapshotCaptured
		if err := r.Decode(&announced); err != nil {
			return false, err
		}
		return announced.CombinedHash == snap.CombinedHash, nil
	}
	return false, fmt.Errorf("capture record for snapshot %s: %w", snapshotID, sentinel.ErrNotFound)
}

// RecordProcessing persists how a decision attempt was computed.
func (l *Ledger) RecordProcessing(ctx context.Context, p ProcessingRecord) (ProcessingRecord, error) {
	if p.SnapshotID == "" {
		return ProcessingRecord{}, fmt.Errorf("processing record without snapshot: %w", sentinel.ErrInvalidState)
	}
	if p.RecordID == "" {
		p.RecordID = l.newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = l.clock().UTC()
	}
	if err := l.store.SaveProcessing(ctx, p); err != nil {
		return ProcessingRecord{}, fmt.Errorf("save processing record: %w", err)
	}
	return p, nil
}

// ProcessingFor returns the processing records of a snapshot.
func (l *Ledger) ProcessingFor(ctx context.Context, snapshotID string) ([]ProcessingRecord, error) {
	return l.store.ProcessingFor(ctx, snapshotID)
}

// Range returns records with start <= sequence <= end.
func (l *Ledger) Range(ctx context.Context, start, end int64) ([]Record, error) {
	return l.store.Range(ctx, start, end)
}

// ByEntity returns an entity's records in sequence order.
func (l *Ledger) ByEntity(ctx context.Context, entityType, entityID string) ([]Record, error) {
	return l.store.ByEntity(ctx, entityType, entityID)
}

// ByTimeWindow returns records appended in [from, to) by the ledger clock.
func (l *Ledger) ByTimeWindow(ctx context.Context, from, to time.Time) ([]Record, error) {
	return l.store.ByTimeWindow(ctx, from, to)
}

// ByEventTypes returns records of any of the given types.
func (l *Ledger) ByEventTypes(ctx context.Context, types ...EventType) ([]Record, error) {
	return l.store.ByEventTypes(ctx, types...)
}
