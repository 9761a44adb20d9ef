package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"riskcast/internal/domain"
	"riskcast/pkg/platform/canonical"
)

// InputSnapshot freezes the exact inputs of a decision attempt. It is
// captured before any computation and never modified.
type InputSnapshot struct {
	SnapshotID   string          `json:"snapshot_id"`
	CustomerID   string          `json:"customer_id"`
	SignalID     string          `json:"signal_id"`
	SignalHash   string          `json:"signal_hash"`
	RealityHash  string          `json:"reality_hash"`
	ContextHash  string          `json:"context_hash"`
	CombinedHash string          `json:"combined_hash"`
	Signal       json.RawMessage `json:"signal"`
	Reality      json.RawMessage `json:"reality"`
	Context      json.RawMessage `json:"context"`
	CapturedAt   time.Time       `json:"captured_at"`
}

// NewInputSnapshot canonicalizes and hashes the three inputs.
func NewInputSnapshot(id string, sig domain.Signal, obs domain.Reality, cc domain.CustomerContext, at time.Time) (InputSnapshot, error) {
	snap := InputSnapshot{
		SnapshotID: id,
		CustomerID: cc.CustomerID,
		SignalID:   sig.SignalID,
		CapturedAt: at.UTC(),
	}
	var err error
	if snap.Signal, err = canonical.Bytes(sig); err != nil {
		return InputSnapshot{}, fmt.Errorf("snapshot signal: %w", err)
	}
	if snap.Reality, err = canonical.Bytes(obs); err != nil {
		return InputSnapshot{}, fmt.Errorf("snapshot reality: %w", err)
	}
	if snap.Context, err = canonical.Bytes(cc); err != nil {
		return InputSnapshot{}, fmt.Errorf("snapshot context: %w", err)
	}
	snap.SignalHash, snap.RealityHash, snap.ContextHash, snap.CombinedHash = snap.hashes()
	return snap, nil
}

func (s InputSnapshot) hashes() (sig, obs, cc, combined string) {
	sig = canonical.HashBytes(s.Signal)
	obs = canonical.HashBytes(s.Reality)
	cc = canonical.HashBytes(s.Context)
	return sig, obs, cc, canonical.HashStrings(sig, obs, cc)
}

// Verify recomputes every hash from the stored inputs.
func (s InputSnapshot) Verify() bool {
	sig, obs, cc, combined := s.hashes()
	return sig == s.SignalHash &&
		obs == s.RealityHash &&
		cc == s.ContextHash &&
		combined == s.CombinedHash
}

// Inputs decodes the frozen inputs.
func (s InputSnapshot) Inputs() (domain.Signal, domain.Reality, domain.CustomerContext, error) {
	var (
		sig domain.Signal
		obs domain.Reality
		cc  domain.CustomerContext
	)
	if err := json.Unmarshal(s.Signal, &sig); err != nil {
		return sig, obs, cc, fmt.Errorf("decode snapshot signal: %w", err)
	}
	if err := json.Unmarshal(s.Reality, &obs); err != nil {
		return sig, obs, cc, fmt.Errorf("decode snapshot reality: %w", err)
	}
	if err := json.Unmarshal(s.Context, &cc); err != nil {
		return sig, obs, cc, fmt.Errorf("decode snapshot context: %w", err)
	}
	return sig, obs, cc, nil
}

// snapshotCaptured is the payload of a DECISION_INPUT_CAPTURED record.
type snapshotCaptured struct {
	SnapshotID   string `json:"snapshot_id"`
	CustomerID   string `json:"customer_id"`
	SignalID     string `json:"signal_id"`
	SignalHash   string `json:"signal_hash"`
	RealityHash  string `json:"reality_hash"`
	ContextHash  string `json:"context_hash"`
	CombinedHash string `json:"combined_hash"`
}

// Outcome of a decision attempt.
type Outcome string

const (
	OutcomeGenerated  Outcome = "generated"
	OutcomeEscalated  Outcome = "escalated"
	OutcomeNoExposure Outcome = "no_exposure"
	OutcomeFailed     Outcome = "failed"
)

// Degradation flags recorded when a best-effort collaborator was skipped.
const (
	DegradedExplanationFallback = "explanation_fallback"
	DegradedCausalEnrichment    = "causal_enrichment_unavailable"
)

// ProcessingRecord describes how one decision attempt was computed.
type ProcessingRecord struct {
	RecordID       string             `json:"record_id"`
	SnapshotID     string             `json:"snapshot_id"`
	DecisionID     string             `json:"decision_id,omitempty"`
	TraceID        string             `json:"trace_id,omitempty"`
	CustomerID     string             `json:"customer_id"`
	Outcome        Outcome            `json:"outcome"`
	ModelVersion   string             `json:"model_version"`
	ConfigVersion  string             `json:"config_version"`
	LayersExecuted []string           `json:"layers_executed"`
	LayerTimingsMs map[string]float64 `json:"layer_timings_ms"`
	Degraded       []string           `json:"degraded,omitempty"`
	DurationMs     float64            `json:"duration_ms"`
	CreatedAt      time.Time          `json:"created_at"`
}
