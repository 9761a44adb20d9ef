package audit_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"riskcast/internal/audit"
	"riskcast/internal/audit/metrics"
	"riskcast/internal/audit/store/memory"
	"riskcast/internal/domain"
	"riskcast/pkg/platform/sentinel"
	"riskcast/pkg/testutil"
)

type LedgerSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	store   *memory.Store
	damaged *corruptingStore
	metrics *metrics.Metrics
	ledger  *audit.Ledger
}

func (s *LedgerSuite) SetupTest() {
	s.ctx = testutil.ContextAt(testutil.ReferenceTime)
	s.store = memory.NewStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.now = testutil.ReferenceTime
	s.damaged = newCorruptingStore(s.store)
	s.ledger = audit.NewLedger(s.damaged,
		audit.WithMetrics(s.metrics),
		audit.WithClock(func() time.Time { return s.now }),
	)
}

func (s *LedgerSuite) appendN(n int) []audit.Record {
	out := make([]audit.Record, 0, n)
	for i := range n {
		rec, err := s.ledger.Append(s.ctx, audit.Entry{
			EventType:  audit.EventNoExposure,
			EntityType: audit.EntityCustomer,
			EntityID:   fmt.Sprintf("cust-%d", i%3),
			Payload:    map[string]any{"i": i, "signal_id": "sig-redsea-001"},
		})
		s.Require().NoError(err)
		out = append(out, rec)
	}
	return out
}

func (s *LedgerSuite) TestAppendLinksRecords() {
	recs := s.appendN(3)

	s.Equal(int64(0), recs[0].SequenceNumber)
	s.Equal(audit.GenesisHash, recs[0].PreviousHash)
	for i := 1; i < len(recs); i++ {
		s.Equal(int64(i), recs[i].SequenceNumber)
		s.Equal(recs[i-1].RecordHash, recs[i].PreviousHash)
	}
	s.Len(recs[0].RecordHash, 64)
	s.Equal(testutil.ReferenceTime, recs[0].CreatedAt)

	want, err := audit.RecordHash(1, recs[0].RecordHash, recs[1].PayloadHash)
	s.Require().NoError(err)
	s.Equal(want, recs[1].RecordHash)

	s.Equal(3.0, promtestutil.ToFloat64(s.metrics.Appended.WithLabelValues("NO_EXPOSURE")))
	s.Equal(2.0, promtestutil.ToFloat64(s.metrics.ChainHead))
}

func (s *LedgerSuite) TestAppendRejectsUnknownEventType() {
	_, err := s.ledger.Append(s.ctx, audit.Entry{EventType: "SOMETHING"})
	s.Error(err)
	s.Zero(s.store.Len())
}

func (s *LedgerSuite) TestVerifyValidChain() {
	s.appendN(10)

	res, err := s.ledger.VerifyChainIntegrity(s.ctx, 0, 9)
	s.Require().NoError(err)
	s.True(res.Valid)
	s.Equal(10, res.RecordsChecked)
	s.Nil(res.Violation)

	res, err = s.ledger.VerifyChainIntegrity(s.ctx, 4, -1)
	s.Require().NoError(err)
	s.True(res.Valid)
	s.Equal(6, res.RecordsChecked)
}

func (s *LedgerSuite) TestVerifyEmptyLedger() {
	res, err := s.ledger.VerifyChainIntegrity(s.ctx, 0, -1)
	s.Require().NoError(err)
	s.True(res.Valid)
}

func (s *LedgerSuite) TestVerifyInvalidRange() {
	s.appendN(2)
	_, err := s.ledger.VerifyChainIntegrity(s.ctx, 1, 0)
	s.ErrorIs(err, audit.ErrInvalidRange)
}

func (s *LedgerSuite) TestVerifyDetectsTamperedPayload() {
	s.appendN(8)
	s.Require().True(s.damaged.Tamper(5, func(r *audit.Record) {
		r.Payload = json.RawMessage(`{"i":500,"signal_id":"sig-redsea-001"}`)
	}))

	res, err := s.ledger.VerifyChainIntegrity(s.ctx, 0, 7)
	s.Require().NoError(err)
	s.False(res.Valid)
	s.Equal(audit.ViolationRecordTampered, res.Violation.Kind)
	s.Equal(int64(5), res.Violation.SequenceNumber)
	s.Equal(5, res.RecordsChecked)
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.Verifications.WithLabelValues("record_tampered")))
}

func (s *LedgerSuite) TestVerifyDetectsRehashedRecord() {
	s.appendN(6)
	// a forger recomputes the payload hash but cannot fix the record hash
	s.Require().True(s.damaged.Tamper(2, func(r *audit.Record) {
		r.Payload = json.RawMessage(`{"i":2,"signal_id":"forged"}`)
		r.PayloadHash, _ = audit.PayloadHash(r.Payload)
	}))

	res, err := s.ledger.VerifyChainIntegrity(s.ctx, 0, 5)
	s.Require().NoError(err)
	s.Equal(audit.ViolationRecordTampered, res.Violation.Kind)
	s.Equal(int64(2), res.Violation.SequenceNumber)
}

func (s *LedgerSuite) TestVerifyDetectsBrokenLink() {
	s.appendN(6)
	s.Require().True(s.damaged.Tamper(3, func(r *audit.Record) {
		r.PreviousHash = audit.GenesisHash
	}))

	res, err := s.ledger.VerifyChainIntegrity(s.ctx, 0, 5)
	s.Require().NoError(err)
	s.Equal(audit.ViolationChainBroken, res.Violation.Kind)
	s.Equal(int64(3), res.Violation.SequenceNumber)
}

func (s *LedgerSuite) TestVerifyDetectsGap() {
	s.appendN(6)
	s.Require().True(s.damaged.Delete(4))

	res, err := s.ledger.VerifyChainIntegrity(s.ctx, 0, 5)
	s.Require().NoError(err)
	s.Equal(audit.ViolationSequenceGap, res.Violation.Kind)
	s.Equal(int64(4), res.Violation.SequenceNumber)

	s.Run("missing predecessor of a sub-range", func() {
		res, err := s.ledger.VerifyChainIntegrity(s.ctx, 5, 5)
		s.Require().NoError(err)
		s.Equal(audit.ViolationSequenceGap, res.Violation.Kind)
		s.Equal(int64(4), res.Violation.SequenceNumber)
	})

	s.Run("missing tail", func() {
		s.Require().True(s.damaged.Delete(5))
		res, err := s.ledger.VerifyChainIntegrity(s.ctx, 0, 5)
		s.Require().NoError(err)
		s.Equal(audit.ViolationSequenceGap, res.Violation.Kind)
		s.Equal(int64(4), res.Violation.SequenceNumber)
	})
}

func (s *LedgerSuite) TestConcurrentAppendsStayGapFree() {
	const writers, perWriter = 8, 25
	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWriter {
				_, err := s.ledger.Append(s.ctx, audit.Entry{
					EventType: audit.EventNoExposure,
					Payload:   map[string]int{"writer": w, "i": i},
				})
				s.NoError(err)
			}
		}()
	}
	wg.Wait()

	s.Equal(writers*perWriter, s.store.Len())
	res, err := s.ledger.VerifyChainIntegrity(s.ctx, 0, -1)
	s.Require().NoError(err)
	s.True(res.Valid)
	s.Equal(writers*perWriter, res.RecordsChecked)
}

func (s *LedgerSuite) TestLedgerResumesFromStoredHead() {
	recs := s.appendN(3)

	resumed := audit.NewLedger(s.store)
	rec, err := resumed.Append(s.ctx, audit.Entry{EventType: audit.EventNoExposure, Payload: map[string]int{"i": 3}})
	s.Require().NoError(err)
	s.Equal(int64(3), rec.SequenceNumber)
	s.Equal(recs[2].RecordHash, rec.PreviousHash)
}

func (s *LedgerSuite) TestCaptureSnapshot() {
	snap, rec, err := s.ledger.CaptureSnapshot(s.ctx, testutil.RedSeaSignal(), testutil.RedSeaReality(), testutil.RedSeaCustomer())
	s.Require().NoError(err)

	s.Equal(audit.EventDecisionInputCaptured, rec.EventType)
	s.Equal(audit.EntitySnapshot, rec.EntityType)
	s.Equal(snap.SnapshotID, rec.EntityID)
	s.Equal("cust-acme", snap.CustomerID)
	s.True(snap.Verify())

	ok, err := s.ledger.VerifySnapshot(s.ctx, snap.SnapshotID)
	s.Require().NoError(err)
	s.True(ok)

	sig, _, cc, err := snap.Inputs()
	s.Require().NoError(err)
	s.Equal(testutil.RedSeaSignal().SignalID, sig.SignalID)
	s.Len(cc.Shipments, 2)

	s.Run("identical inputs hash identically", func() {
		again, _, err := s.ledger.CaptureSnapshot(s.ctx, testutil.RedSeaSignal(), testutil.RedSeaReality(), testutil.RedSeaCustomer())
		s.Require().NoError(err)
		s.NotEqual(snap.SnapshotID, again.SnapshotID)
		s.Equal(snap.CombinedHash, again.CombinedHash)
	})

	s.Run("changed inputs do not verify", func() {
		forged := snap
		forged.Signal = json.RawMessage(`{"signal_id":"forged"}`)
		s.False(forged.Verify())
	})
}

func (s *LedgerSuite) TestVerifySnapshotUnknown() {
	_, err := s.ledger.VerifySnapshot(s.ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *LedgerSuite) TestFailedAppendDoesNotAdvanceHead() {
	flaky := &flakyStore{Store: s.store}
	ledger := audit.NewLedger(flaky)

	_, err := ledger.Append(s.ctx, audit.Entry{EventType: audit.EventNoExposure, Payload: map[string]int{"i": 0}})
	s.Require().NoError(err)

	flaky.failAppends = true
	_, err = ledger.Append(s.ctx, audit.Entry{EventType: audit.EventNoExposure, Payload: map[string]int{"i": 1}})
	s.ErrorIs(err, errStoreDown)

	_, _, err = ledger.CaptureSnapshot(s.ctx, testutil.RedSeaSignal(), testutil.RedSeaReality(), testutil.RedSeaCustomer())
	s.ErrorIs(err, errStoreDown)

	flaky.failAppends = false
	rec, err := ledger.Append(s.ctx, audit.Entry{EventType: audit.EventNoExposure, Payload: map[string]int{"i": 1}})
	s.Require().NoError(err)
	s.Equal(int64(1), rec.SequenceNumber)

	snaps, err := s.store.ByEventTypes(s.ctx, audit.EventDecisionInputCaptured)
	s.Require().NoError(err)
	s.Empty(snaps, "rolled back capture must leave no record")

	res, err := ledger.VerifyChainIntegrity(s.ctx, 0, -1)
	s.Require().NoError(err)
	s.True(res.Valid)
}

func (s *LedgerSuite) TestConflictReloadsHead() {
	other := audit.NewLedger(s.store)
	s.appendN(1)
	// a second writer on the same store only learns of the first on conflict
	_, err := other.Append(s.ctx, audit.Entry{EventType: audit.EventNoExposure, Payload: map[string]int{"i": 9}})
	s.Require().NoError(err)

	_, err = s.ledger.Append(s.ctx, audit.Entry{EventType: audit.EventNoExposure, Payload: map[string]int{"i": 10}})
	s.ErrorIs(err, sentinel.ErrConflict)
	rec, err := s.ledger.Append(s.ctx, audit.Entry{EventType: audit.EventNoExposure, Payload: map[string]int{"i": 10}})
	s.Require().NoError(err)
	s.Equal(int64(2), rec.SequenceNumber)
}

func (s *LedgerSuite) TestPublisherSeesRecordsInOrder() {
	pub := &recordingPublisher{}
	ledger := audit.NewLedger(memory.NewStore(), audit.WithPublisher(pub))
	for i := range 5 {
		_, err := ledger.Append(s.ctx, audit.Entry{EventType: audit.EventNoExposure, Payload: map[string]int{"i": i}})
		s.Require().NoError(err)
	}
	s.Equal([]int64{0, 1, 2, 3, 4}, pub.seqs)
}

func (s *LedgerSuite) TestHumanInteractions() {
	at := testutil.ReferenceTime.Add(time.Hour)
	helpful := true

	_, err := s.ledger.RecordAcknowledgement(s.ctx, audit.Interaction{DecisionID: "dec_1", Actor: "ops@acme", At: at})
	s.Require().NoError(err)
	_, err = s.ledger.RecordFeedback(s.ctx, audit.Interaction{DecisionID: "dec_1", Actor: "ops@acme", ActionTaken: domain.ActionReroute, Helpful: &helpful, At: at})
	s.Require().NoError(err)
	_, err = s.ledger.RecordOverride(s.ctx, audit.Interaction{DecisionID: "dec_1", Actor: "ops@acme", OriginalAction: domain.ActionReroute, ActionTaken: domain.ActionInsure, At: at})
	s.Require().NoError(err)

	s.Run("invalid interactions", func() {
		_, err := s.ledger.RecordOverride(s.ctx, audit.Interaction{DecisionID: "dec_1", Actor: "ops", OriginalAction: domain.ActionInsure, ActionTaken: domain.ActionInsure})
		s.ErrorIs(err, sentinel.ErrInvalidState)
		_, err = s.ledger.RecordFeedback(s.ctx, audit.Interaction{DecisionID: "dec_1", Actor: "ops"})
		s.ErrorIs(err, sentinel.ErrInvalidState)
		_, err = s.ledger.RecordAcknowledgement(s.ctx, audit.Interaction{DecisionID: "dec_1"})
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})

	recs, err := s.ledger.ByEntity(s.ctx, audit.EntityDecision, "dec_1")
	s.Require().NoError(err)
	s.Require().Len(recs, 3)
	for _, r := range recs {
		s.True(r.EventType.IsHumanInteraction())
	}
	var fb audit.Interaction
	s.Require().NoError(recs[1].Decode(&fb))
	s.Equal(domain.ActionReroute, fb.ActionTaken)
	s.True(*fb.Helpful)
}

func (s *LedgerSuite) TestQueries() {
	s.appendN(6)
	s.now = testutil.ReferenceTime.Add(2 * time.Hour)
	_, err := s.ledger.Append(s.ctx, audit.Entry{EventType: audit.EventReasoningFailed, EntityType: audit.EntityCustomer, EntityID: "cust-0", Payload: map[string]string{"layer": "factual"}})
	s.Require().NoError(err)

	recs, err := s.ledger.Range(s.ctx, 2, 4)
	s.Require().NoError(err)
	s.Len(recs, 3)

	recs, err = s.ledger.ByEntity(s.ctx, audit.EntityCustomer, "cust-0")
	s.Require().NoError(err)
	s.Len(recs, 3)

	recs, err = s.ledger.ByTimeWindow(s.ctx, testutil.ReferenceTime.Add(time.Hour), testutil.ReferenceTime.Add(3*time.Hour))
	s.Require().NoError(err)
	s.Require().Len(recs, 1)
	s.Equal(int64(6), recs[0].SequenceNumber)

	recs, err = s.ledger.ByEventTypes(s.ctx, audit.EventReasoningFailed, audit.EventDecisionGenerated)
	s.Require().NoError(err)
	s.Len(recs, 1)
}

func (s *LedgerSuite) TestCreatedAtIsAppendTime() {
	replayed := testutil.ReferenceTime.Add(-90 * 24 * time.Hour)
	replayCtx := testutil.ContextAt(replayed)

	snap, captured, err := s.ledger.CaptureSnapshot(replayCtx, testutil.RedSeaSignal(), testutil.RedSeaReality(), testutil.RedSeaCustomer())
	s.Require().NoError(err)
	s.Equal(replayed, snap.CapturedAt)
	s.Equal(s.now, captured.CreatedAt)

	recs, err := s.ledger.ByTimeWindow(s.ctx, s.now, s.now.Add(time.Second))
	s.Require().NoError(err)
	s.Require().Len(recs, 1)
	s.Equal(captured.RecordHash, recs[0].RecordHash)

	recs, err = s.ledger.ByTimeWindow(s.ctx, replayed, replayed.Add(time.Second))
	s.Require().NoError(err)
	s.Empty(recs)
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

var errStoreDown = errors.New("store down")

type flakyStore struct {
	*memory.Store
	failAppends bool
}

func (f *flakyStore) AppendRecord(ctx context.Context, r audit.Record) error {
	if f.failAppends {
		return errStoreDown
	}
	return f.Store.AppendRecord(ctx, r)
}

type recordingPublisher struct {
	seqs []int64
}

func (p *recordingPublisher) Publish(r audit.Record) {
	p.seqs = append(p.seqs, r.SequenceNumber)
}
