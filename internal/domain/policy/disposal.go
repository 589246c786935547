package policy

import (
	"context"
	"fmt"

	"boxledger/internal/core/apperror"
	"boxledger/internal/core/entity"
	"boxledger/internal/domain/movement"
)

// Disposal zeroes a box and flags the ledger row disposed. The row is kept
// for traceability. Irreversible: no cancellation policy exists for
// disposal, and a later receive on the same box starts from zero.
type Disposal struct{}

func (Disposal) Kind() entity.MovementKind { return entity.KindDisposal }

func (Disposal) Validate(req *movement.Request) error {
	if req.Reason == "" {
		return apperror.NewValidation("disposal reason is required")
	}
	for i, l := range req.Lines {
		if l.Warehouse == "" || l.BoxID == "" || l.ItemCode == "" {
			return apperror.NewValidation("warehouse, box and item are required").WithDetail("line", i)
		}
	}
	return nil
}

func (Disposal) Apply(ctx context.Context, env Env, req *movement.Request) (*Applied, error) {
	applied := &Applied{}
	for i, line := range req.Lines {
		key := line.Key(req.BusinessUnit)

		// Zero reports the quantities it actually removed, so the record
		// cannot drift from the ledger under concurrent increments.
		goodQty, _, err := env.Ledger.Zero(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("disposal line %d: %w", i, err)
		}

		seq, err := env.NextKey(ctx, req)
		if err != nil {
			return nil, err
		}
		logRec := baseRecord(seq, entity.KindDisposal, req)
		logRec.BoxID = line.BoxID
		logRec.ItemCode = line.ItemCode
		logRec.Qty = goodQty
		logRec.SourceWarehouse = line.Warehouse
		logRec.Reason = req.Reason
		if err := env.Log.Append(ctx, logRec); err != nil {
			return nil, fmt.Errorf("disposal line %d: %w", i, err)
		}

		applied.addKey(seq)
		applied.touch(key)
	}
	return applied, nil
}
