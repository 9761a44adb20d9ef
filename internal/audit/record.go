// Package audit is the tamper-evident ledger every decision attempt writes
// to: a hash-chained, append-only sequence of records plus the immutable
// input snapshots and processing records they reference.
package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"riskcast/pkg/platform/canonical"
)

// GenesisHash is the previous_hash of the first record.
const GenesisHash = "genesis"

// EventType names what a record attests to.
type EventType string

const (
	EventDecisionInputCaptured EventType = "DECISION_INPUT_CAPTURED"
	EventDecisionGenerated     EventType = "DECISION_GENERATED"
	EventDecisionEscalated     EventType = "DECISION_ESCALATED"
	EventNoExposure            EventType = "NO_EXPOSURE"
	EventReasoningFailed       EventType = "REASONING_FAILED"

	// Human interactions
	EventDecisionAcknowledged EventType = "DECISION_ACKNOWLEDGED"
	EventFeedbackRecorded     EventType = "FEEDBACK_RECORDED"
	EventDecisionOverridden   EventType = "DECISION_OVERRIDDEN"
)

var eventTypes = map[EventType]bool{
	EventDecisionInputCaptured: true,
	EventDecisionGenerated:     true,
	EventDecisionEscalated:     true,
	EventNoExposure:            true,
	EventReasoningFailed:       true,
	EventDecisionAcknowledged:  true,
	EventFeedbackRecorded:      true,
	EventDecisionOverridden:    true,
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	return eventTypes[t]
}

// IsHumanInteraction reports whether t records something a person did.
func (t EventType) IsHumanInteraction() bool {
	switch t {
	case EventDecisionAcknowledged, EventFeedbackRecorded, EventDecisionOverridden:
		return true
	}
	return false
}

// Entity types records are indexed by.
const (
	EntitySnapshot = "snapshot"
	EntityDecision = "decision"
	EntityCustomer = "customer"
)

// Record is one link of the chain. Records are never updated or deleted.
// CreatedAt is the ledger clock at append time; the reference time a
// decision was computed against is its snapshot's CapturedAt.
type Record struct {
	RecordID       string          `json:"record_id"`
	SequenceNumber int64           `json:"sequence_number"`
	PreviousHash   string          `json:"previous_hash"`
	PayloadHash    string          `json:"payload_hash"`
	RecordHash     string          `json:"record_hash"`
	EventType      EventType       `json:"event_type"`
	EntityType     string          `json:"entity_type"`
	EntityID       string          `json:"entity_id"`
	Payload        json.RawMessage `json:"payload"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Decode unmarshals the payload into v.
func (r Record) Decode(v any) error {
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload at sequence %d: %w", r.EventType, r.SequenceNumber, err)
	}
	return nil
}

// PayloadHash returns the SHA-256 of the canonical payload encoding.
func PayloadHash(payload json.RawMessage) (string, error) {
	b, err := canonical.Transform(payload)
	if err != nil {
		return "", err
	}
	return canonical.HashBytes(b), nil
}

// RecordHash returns the SHA-256 over the canonical encoding of
// {sequence_number, previous_hash, payload_hash}.
func RecordHash(seq int64, previousHash, payloadHash string) (string, error) {
	return canonical.Hash(struct {
		SequenceNumber int64  `json:"sequence_number"`
		PreviousHash   string `json:"previous_hash"`
		PayloadHash    string `json:"payload_hash"`
	}{seq, previousHash, payloadHash})
}
