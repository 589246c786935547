package policy

import (
	"context"
	"fmt"

	"boxledger/internal/core/apperror"
	"boxledger/internal/core/entity"
	"boxledger/internal/domain/movement"
)

// Return books shipped material back into a return warehouse. A
// defect-flagged line raises the defect sub-count and, when the return
// warehouse has a defect warehouse configured, composes an implicit transfer
// there for the same quantity — receive plus transfer in one atomic batch,
// never two independent calls. The defect count follows the goods: it is
// booked once, at the warehouse where the quantity finally rests, so a
// defective unit never appears twice in aggregate defect counts.
type Return struct{}

func (Return) Kind() entity.MovementKind { return entity.KindReturn }

func (Return) Validate(req *movement.Request) error {
	return requireLineFields(req)
}

func (Return) Apply(ctx context.Context, env Env, req *movement.Request) (*Applied, error) {
	applied := &Applied{}
	for i, line := range req.Lines {
		key := line.Key(req.BusinessUnit)

		// Resolve defect routing before booking, so the defect count lands
		// only at the final resting warehouse.
		var routeTo string
		if line.DefectFlag {
			wh, err := env.Catalog.GetWarehouse(ctx, line.Warehouse)
			if err != nil {
				return nil, fmt.Errorf("return line %d: %w", i, err)
			}
			if wh.DefectWarehouse != "" && wh.DefectWarehouse != line.Warehouse {
				routeTo = wh.DefectWarehouse
			}
		}

		var defectDelta int64
		if line.DefectFlag && routeTo == "" {
			defectDelta = line.Qty
		}
		if err := env.Ledger.UpsertIncrement(ctx, key, line.Qty, defectDelta, line.Defaults()); err != nil {
			return nil, fmt.Errorf("return line %d: %w", i, err)
		}

		seq, err := env.NextKey(ctx, req)
		if err != nil {
			return nil, err
		}
		rec := baseRecord(seq, entity.KindReturn, req)
		rec.BoxID = line.BoxID
		rec.ItemCode = line.ItemCode
		rec.Qty = line.Qty
		rec.DestWarehouse = line.Warehouse
		rec.Reason = req.Reason
		if err := env.Log.Append(ctx, rec); err != nil {
			return nil, fmt.Errorf("return line %d: %w", i, err)
		}
		applied.addKey(seq)
		applied.touch(key)

		if routeTo == "" {
			continue
		}

		defectKey := key.WithWarehouse(routeTo)
		if err := env.Ledger.TryDecrement(ctx, key, line.Qty); err != nil {
			return nil, fmt.Errorf("return line %d defect routing: %w", i, err)
		}
		if err := env.Ledger.UpsertIncrement(ctx, defectKey, line.Qty, line.Qty, line.Defaults()); err != nil {
			return nil, fmt.Errorf("return line %d defect routing: %w", i, err)
		}

		seq, err = env.NextKey(ctx, req)
		if err != nil {
			return nil, err
		}
		xfer := baseRecord(seq, entity.KindTransfer, req)
		xfer.BoxID = line.BoxID
		xfer.ItemCode = line.ItemCode
		xfer.Qty = line.Qty
		xfer.SourceWarehouse = line.Warehouse
		xfer.DestWarehouse = routeTo
		if err := env.Log.Append(ctx, xfer); err != nil {
			return nil, fmt.Errorf("return line %d defect routing: %w", i, err)
		}
		applied.addKey(seq)
		applied.touch(defectKey)
	}
	return applied, nil
}

// ReturnCancel reverses a prior return by decrementing the stock the return
// added back. If that stock has since been consumed elsewhere the decrement
// fails with InsufficientStock — a legitimate rejection surfaced to the
// caller, not forced through.
type ReturnCancel struct{}

func (ReturnCancel) Kind() entity.MovementKind { return entity.KindReturnCancel }

func (ReturnCancel) Validate(req *movement.Request) error {
	for i, l := range req.Lines {
		if l.RefKey == "" {
			return apperror.NewValidation("reference sequence key is required").WithDetail("line", i)
		}
	}
	return nil
}

func (ReturnCancel) Apply(ctx context.Context, env Env, req *movement.Request) (*Applied, error) {
	applied := &Applied{}
	for i, line := range req.Lines {
		orig, err := env.Log.FindReversalTarget(ctx, entity.KindReturnCancel.ReversalOf(), line.RefKey)
		if err != nil {
			return nil, fmt.Errorf("return cancel line %d: %w", i, err)
		}

		key := entity.StockKey{
			BusinessUnit: orig.BusinessUnit,
			Warehouse:    orig.DestWarehouse,
			BoxID:        orig.BoxID,
			ItemCode:     orig.ItemCode,
		}
		if err := env.Ledger.TryDecrement(ctx, key, orig.Qty); err != nil {
			return nil, fmt.Errorf("return cancel line %d: %w", i, err)
		}
		if err := env.Log.MarkReversed(ctx, orig.SequenceKey); err != nil {
			return nil, fmt.Errorf("return cancel line %d: %w", i, err)
		}

		seq, err := env.NextKey(ctx, req)
		if err != nil {
			return nil, err
		}
		rec := baseRecord(seq, entity.KindReturnCancel, req)
		rec.BoxID = orig.BoxID
		rec.ItemCode = orig.ItemCode
		rec.Qty = orig.Qty
		rec.SourceWarehouse = orig.DestWarehouse
		rec.RelatedKey = orig.SequenceKey
		if err := env.Log.Append(ctx, rec); err != nil {
			return nil, fmt.Errorf("return cancel line %d: %w", i, err)
		}

		applied.addKey(seq)
		applied.touch(key)
	}
	return applied, nil
}
