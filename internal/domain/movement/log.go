// Package movement defines the immutable movement log and the request/result
// types the engine exchanges with its callers.
package movement

import (
	"context"

	"boxledger/internal/core/entity"
)

// Log is the append-only record of every quantity change, keyed by sequence
// key. Records are immutable once written; the reversed flag is bookkeeping
// for cancellations and never alters recorded quantities.
type Log interface {
	// Append writes one record. A duplicate sequence key is rejected.
	Append(ctx context.Context, rec entity.MovementRecord) error

	// FindByKey returns the record with the given sequence key, or NotFound.
	FindByKey(ctx context.Context, sequenceKey string) (entity.MovementRecord, error)

	// FindReversalTarget returns the not-yet-reversed record of the given
	// kind, for cancellation policies. NotFound when absent,
	// AlreadyReversed when the record exists but was already cancelled.
	FindReversalTarget(ctx context.Context, kind entity.MovementKind, sequenceKey string) (entity.MovementRecord, error)

	// MarkReversed flags a record as reversed. NotFound when absent.
	MarkReversed(ctx context.Context, sequenceKey string) error
}
