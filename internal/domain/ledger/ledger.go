// Package ledger defines the authoritative box-indexed stock ledger.
//
// Every mutation the movement policies perform is expressed through exactly
// three primitives — conditional decrement, upsert increment, zero — so each
// policy composes the same small, provably-safe vocabulary instead of ad hoc
// SQL per screen. Implementations must make each primitive a single atomic
// operation against the backing store; the read-then-write variant is the
// lost-update bug class this package exists to close.
package ledger

import (
	"context"

	"boxledger/internal/core/entity"
)

// Ledger is the authoritative (businessUnit, warehouse, box, item) → quantity
// state.
type Ledger interface {
	// Get returns the current record, or a NotFound error.
	// Reads are always fresh; no implementation caches records across
	// requests.
	Get(ctx context.Context, key entity.StockKey) (entity.StockRecord, error)

	// ListByWarehouse returns the non-empty records of one warehouse.
	ListByWarehouse(ctx context.Context, businessUnit, warehouse string) ([]entity.StockRecord, error)

	// TryDecrement decrements goodQty by qty only if goodQty >= qty, as one
	// atomic conditional update. Returns InsufficientStock when the row
	// exists but holds less than qty, NotFound when there is no row.
	TryDecrement(ctx context.Context, key entity.StockKey, qty int64) error

	// UpsertIncrement increments goodQty (and defectQty by defectDelta) if
	// the row exists, otherwise creates it seeded with the given quantities
	// and creation defaults — one atomic upsert, never read-exists-then-
	// branch. Incrementing a disposed row revives it from zero.
	UpsertIncrement(ctx context.Context, key entity.StockKey, qty, defectDelta int64, defaults entity.CreationDefaults) error

	// Zero sets goodQty and defectQty to 0 and marks the row disposed,
	// returning the quantities the row held at the moment of zeroing so the
	// caller can record exactly what was written off. Idempotent: zeroing an
	// already-zero row succeeds silently. Returns NotFound when there is no
	// row at all.
	Zero(ctx context.Context, key entity.StockKey) (goodQty, defectQty int64, err error)
}
