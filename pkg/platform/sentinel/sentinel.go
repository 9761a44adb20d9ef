package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so the orchestrator can translate them without knowing which
// backend produced them.
//
//   - ErrNotFound: record, snapshot or decision does not exist
//   - ErrConflict: a write collided with an existing key (e.g. a sequence number)
//   - ErrExpired: a decision was read after its TTL elapsed
//   - ErrInvalidState: entity is in the wrong state for the operation
//   - ErrUnavailable: backend temporarily unreachable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
