// Package sqlstore persists the audit ledger in SQLite or PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"riskcast/internal/audit"
	"riskcast/pkg/platform/sentinel"
	txcontext "riskcast/pkg/platform/tx"
)

// Store implements audit.Store over database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects with driver and dsn and applies migrations.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	d, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("ledger dsn is required")
	}
	if d == DialectSQLite && !strings.Contains(dsn, "_pragma") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s ledger: %w", driver, err)
	}
	if d == DialectSQLite {
		// one writer; also keeps :memory: databases on a single connection
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s ledger: %w", driver, err)
	}
	if err := Migrate(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &Store{db: db, dialect: d}, nil
}

// New wraps an already migrated database.
func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, dialect: d}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// RunInTx runs fn in a transaction carried by ctx.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return txcontext.Run(ctx, s.db, fn)
}

const recordColumns = `sequence_number, record_id, previous_hash, payload_hash, record_hash,
	event_type, entity_type, entity_id, payload, created_at`

func (s *Store) AppendRecord(ctx context.Context, r audit.Record) error {
	query := s.dialect.Rebind(`INSERT INTO audit_records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.execer(ctx).ExecContext(ctx, query,
		r.SequenceNumber,
		r.RecordID,
		r.PreviousHash,
		r.PayloadHash,
		r.RecordHash,
		string(r.EventType),
		r.EntityType,
		r.EntityID,
		string(r.Payload),
		toMillis(r.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sequence %d: %w", r.SequenceNumber, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (s *Store) Head(ctx context.Context) (audit.Record, bool, error) {
	recs, err := s.queryRecords(ctx, `SELECT `+recordColumns+` FROM audit_records
		ORDER BY sequence_number DESC LIMIT 1`)
	if err != nil {
		return audit.Record{}, false, err
	}
	if len(recs) == 0 {
		return audit.Record{}, false, nil
	}
	return recs[0], true, nil
}

func (s *Store) Range(ctx context.Context, start, end int64) ([]audit.Record, error) {
	return s.queryRecords(ctx, `SELECT `+recordColumns+` FROM audit_records
		WHERE sequence_number >= ? AND sequence_number <= ?
		ORDER BY sequence_number`, start, end)
}

func (s *Store) ByEntity(ctx context.Context, entityType, entityID string) ([]audit.Record, error) {
	return s.queryRecords(ctx, `SELECT `+recordColumns+` FROM audit_records
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY sequence_number`, entityType, entityID)
}

func (s *Store) ByTimeWindow(ctx context.Context, from, to time.Time) ([]audit.Record, error) {
	return s.queryRecords(ctx, `SELECT `+recordColumns+` FROM audit_records
		WHERE created_at >= ? AND created_at < ?
		ORDER BY sequence_number`, toMillis(from), toMillis(to))
}

func (s *Store) ByEventTypes(ctx context.Context, types ...audit.EventType) ([]audit.Record, error) {
	if len(types) == 0 {
		return nil, nil
	}
	values := make([]string, len(types))
	for i, t := range types {
		values[i] = string(t)
	}
	clause, args := s.dialect.inStrings("event_type", values)
	return s.queryRecords(ctx, `SELECT `+recordColumns+` FROM audit_records
		WHERE `+clause+`
		ORDER BY sequence_number`, args...)
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]audit.Record, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		var (
			r         audit.Record
			eventType string
			payload   string
			created   int64
		)
		if err := rows.Scan(
			&r.SequenceNumber,
			&r.RecordID,
			&r.PreviousHash,
			&r.PayloadHash,
			&r.RecordHash,
			&eventType,
			&r.EntityType,
			&r.EntityID,
			&payload,
			&created,
		); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		r.EventType = audit.EventType(eventType)
		r.Payload = json.RawMessage(payload)
		r.CreatedAt = fromMillis(created)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return out, nil
}

func (s *Store) SaveSnapshot(ctx context.Context, snap audit.InputSnapshot) error {
	query := s.dialect.Rebind(`INSERT INTO input_snapshots (
			snapshot_id, customer_id, signal_id, signal_hash, reality_hash, context_hash,
			combined_hash, signal, reality, context, captured_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.execer(ctx).ExecContext(ctx, query,
		snap.SnapshotID,
		snap.CustomerID,
		snap.SignalID,
		snap.SignalHash,
		snap.RealityHash,
		snap.ContextHash,
		snap.CombinedHash,
		string(snap.Signal),
		string(snap.Reality),
		string(snap.Context),
		toMillis(snap.CapturedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("snapshot %s: %w", snap.SnapshotID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (s *Store) Snapshot(ctx context.Context, snapshotID string) (audit.InputSnapshot, error) {
	var (
		snap                  audit.InputSnapshot
		signal, reality, cctx string
		captured              int64
	)
	err := s.execer(ctx).QueryRowContext(ctx, s.dialect.Rebind(`SELECT
			snapshot_id, customer_id, signal_id, signal_hash, reality_hash, context_hash,
			combined_hash, signal, reality, context, captured_at
		FROM input_snapshots WHERE snapshot_id = ?`), snapshotID).Scan(
		&snap.SnapshotID,
		&snap.CustomerID,
		&snap.SignalID,
		&snap.SignalHash,
		&snap.RealityHash,
		&snap.ContextHash,
		&snap.CombinedHash,
		&signal,
		&reality,
		&cctx,
		&captured,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return audit.InputSnapshot{}, fmt.Errorf("snapshot %s: %w", snapshotID, sentinel.ErrNotFound)
	}
	if err != nil {
		return audit.InputSnapshot{}, fmt.Errorf("query snapshot: %w", err)
	}
	snap.Signal = json.RawMessage(signal)
	snap.Reality = json.RawMessage(reality)
	snap.Context = json.RawMessage(cctx)
	snap.CapturedAt = fromMillis(captured)
	return snap, nil
}

func (s *Store) SaveProcessing(ctx context.Context, p audit.ProcessingRecord) error {
	layers, err := json.Marshal(nonNil(p.LayersExecuted))
	if err != nil {
		return fmt.Errorf("encode layers: %w", err)
	}
	timings, err := json.Marshal(p.LayerTimingsMs)
	if err != nil {
		return fmt.Errorf("encode layer timings: %w", err)
	}
	degraded, err := json.Marshal(nonNil(p.Degraded))
	if err != nil {
		return fmt.Errorf("encode degradation flags: %w", err)
	}

	query := s.dialect.Rebind(`INSERT INTO processing_records (
			record_id, snapshot_id, decision_id, trace_id, customer_id, outcome,
			model_version, config_version, layers_executed, layer_timings_ms,
			degraded, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.execer(ctx).ExecContext(ctx, query,
		p.RecordID,
		p.SnapshotID,
		p.DecisionID,
		p.TraceID,
		p.CustomerID,
		string(p.Outcome),
		p.ModelVersion,
		p.ConfigVersion,
		string(layers),
		string(timings),
		string(degraded),
		p.DurationMs,
		toMillis(p.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("processing record %s: %w", p.RecordID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert processing record: %w", err)
	}
	return nil
}

func (s *Store) ProcessingFor(ctx context.Context, snapshotID string) ([]audit.ProcessingRecord, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, s.dialect.Rebind(`SELECT
			record_id, snapshot_id, decision_id, trace_id, customer_id, outcome,
			model_version, config_version, layers_executed, layer_timings_ms,
			degraded, duration_ms, created_at
		FROM processing_records WHERE snapshot_id = ?
		ORDER BY created_at, record_id`), snapshotID)
	if err != nil {
		return nil, fmt.Errorf("query processing records: %w", err)
	}
	defer rows.Close()

	var out []audit.ProcessingRecord
	for rows.Next() {
		var (
			p                         audit.ProcessingRecord
			outcome                   string
			layers, timings, degraded string
			created                   int64
		)
		if err := rows.Scan(
			&p.RecordID,
			&p.SnapshotID,
			&p.DecisionID,
			&p.TraceID,
			&p.CustomerID,
			&outcome,
			&p.ModelVersion,
			&p.ConfigVersion,
			&layers,
			&timings,
			&degraded,
			&p.DurationMs,
			&created,
		); err != nil {
			return nil, fmt.Errorf("scan processing record: %w", err)
		}
		p.Outcome = audit.Outcome(outcome)
		p.CreatedAt = fromMillis(created)
		if err := json.Unmarshal([]byte(layers), &p.LayersExecuted); err != nil {
			return nil, fmt.Errorf("decode layers: %w", err)
		}
		if err := json.Unmarshal([]byte(timings), &p.LayerTimingsMs); err != nil {
			return nil, fmt.Errorf("decode layer timings: %w", err)
		}
		if err := json.Unmarshal([]byte(degraded), &p.Degraded); err != nil {
			return nil, fmt.Errorf("decode degradation flags: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate processing records: %w", err)
	}
	return out, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ audit.Store = (*Store)(nil)
