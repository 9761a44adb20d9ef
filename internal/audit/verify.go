package audit

import "fmt"

// ViolationKind classifies a chain integrity failure.
type ViolationKind string

const (
	ViolationSequenceGap    ViolationKind = "sequence_gap"
	ViolationChainBroken    ViolationKind = "chain_broken"
	ViolationRecordTampered ViolationKind = "record_tampered"
)

// Violation is the first integrity failure found.
type Violation struct {
	Kind           ViolationKind `json:"kind"`
	SequenceNumber int64         `json:"sequence_number"`
	Detail         string        `json:"detail"`
}

func (v Violation) Error() string {
	return fmt.Sprintf("audit chain %s at sequence %d: %s", v.Kind, v.SequenceNumber, v.Detail)
}

// VerificationResult reports a chain walk.
type VerificationResult struct {
	Valid          bool       `json:"valid"`
	Start          int64      `json:"start"`
	End            int64      `json:"end"`
	RecordsChecked int        `json:"records_checked"`
	Violation      *Violation `json:"violation,omitempty"`
}

// verifyChain walks records expected to cover [start, end]. prevHash is the
// record hash preceding start. Checks per record run in order: contiguity,
// linkage, recomputation. The walk stops at the first failure.
func verifyChain(records []Record, start, end int64, prevHash string) VerificationResult {
	res := VerificationResult{Start: start, End: end}
	fail := func(kind ViolationKind, seq int64, format string, args ...any) VerificationResult {
		res.Violation = &Violation{Kind: kind, SequenceNumber: seq, Detail: fmt.Sprintf(format, args...)}
		return res
	}

	expected := start
	for _, r := range records {
		if r.SequenceNumber != expected {
			return fail(ViolationSequenceGap, expected, "expected sequence %d, found %d", expected, r.SequenceNumber)
		}
		if r.PreviousHash != prevHash {
			return fail(ViolationChainBroken, r.SequenceNumber, "previous_hash %s does not match %s", short(r.PreviousHash), short(prevHash))
		}
		payloadHash, err := PayloadHash(r.Payload)
		if err != nil || payloadHash != r.PayloadHash {
			return fail(ViolationRecordTampered, r.SequenceNumber, "payload hash mismatch")
		}
		recordHash, err := RecordHash(r.SequenceNumber, r.PreviousHash, r.PayloadHash)
		if err != nil || recordHash != r.RecordHash {
			return fail(ViolationRecordTampered, r.SequenceNumber, "record hash mismatch")
		}
		prevHash = r.RecordHash
		expected++
		res.RecordsChecked++
	}
	if expected <= end {
		return fail(ViolationSequenceGap, expected, "record %d missing", expected)
	}
	res.Valid = true
	return res
}

func short(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
