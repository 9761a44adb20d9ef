package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskcast/internal/audit"
	"riskcast/pkg/platform/sentinel"
	"riskcast/pkg/testutil"
)

// exerciseLedger drives a Ledger over store through the behaviour every
// backend must share.
func exerciseLedger(t *testing.T, store *Store) {
	t.Helper()
	ctx := testutil.ContextAt(testutil.ReferenceTime)
	ledger := audit.NewLedger(store, audit.WithClock(func() time.Time { return testutil.ReferenceTime }))

	snap, captured, err := ledger.CaptureSnapshot(ctx, testutil.RedSeaSignal(), testutil.RedSeaReality(), testutil.RedSeaCustomer())
	require.NoError(t, err)
	assert.Equal(t, int64(0), captured.SequenceNumber)
	assert.Equal(t, audit.GenesisHash, captured.PreviousHash)

	for i := range 5 {
		_, err := ledger.Append(ctx, audit.Entry{
			EventType:  audit.EventNoExposure,
			EntityType: audit.EntityCustomer,
			EntityID:   "cust-acme",
			Payload:    map[string]int{"i": i},
		})
		require.NoError(t, err)
	}

	t.Run("chain verifies", func(t *testing.T) {
		res, err := ledger.VerifyChainIntegrity(ctx, 0, -1)
		require.NoError(t, err)
		assert.True(t, res.Valid)
		assert.Equal(t, 6, res.RecordsChecked)
	})

	t.Run("head", func(t *testing.T) {
		head, ok, err := store.Head(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(5), head.SequenceNumber)
		assert.Equal(t, testutil.ReferenceTime, head.CreatedAt)
	})

	t.Run("snapshot round trip", func(t *testing.T) {
		got, err := ledger.Snapshot(ctx, snap.SnapshotID)
		require.NoError(t, err)
		assert.Equal(t, snap.CombinedHash, got.CombinedHash)
		assert.True(t, got.Verify())

		ok, err := ledger.VerifySnapshot(ctx, snap.SnapshotID)
		require.NoError(t, err)
		assert.True(t, ok)

		_, err = ledger.Snapshot(ctx, "missing")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("queries", func(t *testing.T) {
		recs, err := ledger.ByEntity(ctx, audit.EntityCustomer, "cust-acme")
		require.NoError(t, err)
		assert.Len(t, recs, 5)

		recs, err = ledger.ByEventTypes(ctx, audit.EventDecisionInputCaptured, audit.EventReasoningFailed)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, snap.SnapshotID, recs[0].EntityID)

		recs, err = ledger.ByTimeWindow(ctx, testutil.ReferenceTime, testutil.ReferenceTime.Add(time.Second))
		require.NoError(t, err)
		assert.Len(t, recs, 6)

		recs, err = ledger.Range(ctx, 2, 3)
		require.NoError(t, err)
		assert.Len(t, recs, 2)
	})

	t.Run("duplicate sequence conflicts", func(t *testing.T) {
		head, _, err := store.Head(ctx)
		require.NoError(t, err)
		head.RecordID = "another-id"
		err = store.AppendRecord(ctx, head)
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("processing records", func(t *testing.T) {
		_, err := ledger.RecordProcessing(ctx, audit.ProcessingRecord{
			SnapshotID:     snap.SnapshotID,
			DecisionID:     "dec_1",
			CustomerID:     "cust-acme",
			Outcome:        audit.OutcomeGenerated,
			ModelVersion:   "test",
			ConfigVersion:  "abc",
			LayersExecuted: []string{"factual", "temporal"},
			LayerTimingsMs: map[string]float64{"factual": 0.4},
			DurationMs:     12.5,
		})
		require.NoError(t, err)

		got, err := ledger.ProcessingFor(ctx, snap.SnapshotID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, []string{"factual", "temporal"}, got[0].LayersExecuted)
		assert.Equal(t, 0.4, got[0].LayerTimingsMs["factual"])
		assert.Empty(t, got[0].Degraded)
		assert.Equal(t, audit.OutcomeGenerated, got[0].Outcome)
	})

	t.Run("failed transaction leaves nothing behind", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.RunInTx(ctx, func(ctx context.Context) error {
			orphan, err := audit.NewInputSnapshot("orphan", testutil.RedSeaSignal(), testutil.RedSeaReality(), testutil.RedSeaCustomer(), testutil.ReferenceTime)
			require.NoError(t, err)
			require.NoError(t, store.SaveSnapshot(ctx, orphan))
			return boom
		})
		assert.ErrorIs(t, err, boom)
		_, err = store.Snapshot(ctx, "orphan")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("tampered payload is detected", func(t *testing.T) {
		_, err := store.DB().ExecContext(ctx, store.dialect.Rebind(
			`UPDATE audit_records SET payload = ? WHERE sequence_number = ?`), `{"i":99}`, 3)
		require.NoError(t, err)

		res, err := ledger.VerifyChainIntegrity(ctx, 0, -1)
		require.NoError(t, err)
		require.False(t, res.Valid)
		assert.Equal(t, audit.ViolationRecordTampered, res.Violation.Kind)
		assert.Equal(t, int64(3), res.Violation.SequenceNumber)
	})
}
