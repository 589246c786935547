package policy

import (
	"context"
	"fmt"

	"boxledger/internal/core/apperror"
	"boxledger/internal/core/entity"
	"boxledger/internal/domain/movement"
)

// ProductionInput consumes raw material for a process. When the process's
// default warehouse differs from the scanned box's warehouse, an implicit
// transfer moves the quantity there first, then the consumption decrement
// runs at the process warehouse — composed atomically, as in Return.
type ProductionInput struct{}

func (ProductionInput) Kind() entity.MovementKind { return entity.KindProductionInput }

func (ProductionInput) Validate(req *movement.Request) error {
	if req.ProcessCode == "" {
		return apperror.NewValidation("process code is required")
	}
	return requireLineFields(req)
}

func (ProductionInput) Apply(ctx context.Context, env Env, req *movement.Request) (*Applied, error) {
	proc, err := env.Catalog.GetProcess(ctx, req.ProcessCode)
	if err != nil {
		return nil, fmt.Errorf("production input: %w", err)
	}

	applied := &Applied{}
	for i, line := range req.Lines {
		key := line.Key(req.BusinessUnit)
		consumeKey := key

		if proc.DefaultWarehouse != "" && proc.DefaultWarehouse != line.Warehouse {
			consumeKey = key.WithWarehouse(proc.DefaultWarehouse)

			if err := env.Ledger.TryDecrement(ctx, key, line.Qty); err != nil {
				return nil, fmt.Errorf("production input line %d: %w", i, err)
			}
			if err := env.Ledger.UpsertIncrement(ctx, consumeKey, line.Qty, 0, line.Defaults()); err != nil {
				return nil, fmt.Errorf("production input line %d: %w", i, err)
			}

			seq, err := env.NextKey(ctx, req)
			if err != nil {
				return nil, err
			}
			xfer := baseRecord(seq, entity.KindTransfer, req)
			xfer.BoxID = line.BoxID
			xfer.ItemCode = line.ItemCode
			xfer.Qty = line.Qty
			xfer.SourceWarehouse = line.Warehouse
			xfer.DestWarehouse = proc.DefaultWarehouse
			if err := env.Log.Append(ctx, xfer); err != nil {
				return nil, fmt.Errorf("production input line %d: %w", i, err)
			}
			applied.addKey(seq)
			applied.touch(key)
		}

		if err := env.Ledger.TryDecrement(ctx, consumeKey, line.Qty); err != nil {
			return nil, fmt.Errorf("production input line %d: %w", i, err)
		}

		seq, err := env.NextKey(ctx, req)
		if err != nil {
			return nil, err
		}
		rec := baseRecord(seq, entity.KindProductionInput, req)
		rec.BoxID = line.BoxID
		rec.ItemCode = line.ItemCode
		rec.Qty = line.Qty
		rec.SourceWarehouse = consumeKey.Warehouse
		rec.Reason = req.ProcessCode
		if err := env.Log.Append(ctx, rec); err != nil {
			return nil, fmt.Errorf("production input line %d: %w", i, err)
		}

		applied.addKey(seq)
		applied.touch(consumeKey)
	}
	return applied, nil
}

// ProductionResult books finished goods into the process's output warehouse.
// No decrement happens here — the consumed input was already decremented by
// ProductionInput.
type ProductionResult struct{}

func (ProductionResult) Kind() entity.MovementKind { return entity.KindProductionResult }

func (ProductionResult) Validate(req *movement.Request) error {
	if req.ProcessCode == "" {
		return apperror.NewValidation("process code is required")
	}
	for i, l := range req.Lines {
		if l.BoxID == "" || l.ItemCode == "" {
			return apperror.NewValidation("box and item are required").WithDetail("line", i)
		}
		if l.Qty <= 0 {
			return apperror.NewValidation("quantity must be positive").WithDetail("line", i)
		}
	}
	return nil
}

func (ProductionResult) Apply(ctx context.Context, env Env, req *movement.Request) (*Applied, error) {
	proc, err := env.Catalog.GetProcess(ctx, req.ProcessCode)
	if err != nil {
		return nil, fmt.Errorf("production result: %w", err)
	}
	if proc.OutputWarehouse == "" {
		return nil, apperror.NewValidation("process has no output warehouse").
			WithDetail("process", req.ProcessCode)
	}

	applied := &Applied{}
	for i, line := range req.Lines {
		key := entity.StockKey{
			BusinessUnit: req.BusinessUnit,
			Warehouse:    proc.OutputWarehouse,
			BoxID:        line.BoxID,
			ItemCode:     line.ItemCode,
		}
		if err := env.Ledger.UpsertIncrement(ctx, key, line.Qty, 0, line.Defaults()); err != nil {
			return nil, fmt.Errorf("production result line %d: %w", i, err)
		}

		seq, err := env.NextKey(ctx, req)
		if err != nil {
			return nil, err
		}
		rec := baseRecord(seq, entity.KindProductionResult, req)
		rec.BoxID = line.BoxID
		rec.ItemCode = line.ItemCode
		rec.Qty = line.Qty
		rec.DestWarehouse = proc.OutputWarehouse
		rec.Reason = req.ProcessCode
		if err := env.Log.Append(ctx, rec); err != nil {
			return nil, fmt.Errorf("production result line %d: %w", i, err)
		}

		applied.addKey(seq)
		applied.touch(key)
	}
	return applied, nil
}
