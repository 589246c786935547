package policy

import (
	"context"
	"fmt"

	"boxledger/internal/core/apperror"
	"boxledger/internal/core/entity"
	"boxledger/internal/domain/movement"
)

// Transfer moves a box between warehouses: per line, one conditional
// decrement at the source and one upsert increment at the destination, both
// effects sharing a single TRANSFER record. The summed signed quantity of
// the pair is zero by construction.
type Transfer struct{}

func (Transfer) Kind() entity.MovementKind { return entity.KindTransfer }

func (Transfer) Validate(req *movement.Request) error {
	if err := requireLineFields(req); err != nil {
		return err
	}
	for i, l := range req.Lines {
		if l.DestWarehouse == "" {
			return apperror.NewValidation("destination warehouse is required").WithDetail("line", i)
		}
		if l.DestWarehouse == l.Warehouse {
			return apperror.NewValidation("source and destination warehouse must differ").
				WithDetail("line", i).
				WithDetail("warehouse", l.Warehouse)
		}
	}
	return nil
}

func (Transfer) Apply(ctx context.Context, env Env, req *movement.Request) (*Applied, error) {
	applied := &Applied{}
	for i, line := range req.Lines {
		srcKey := line.Key(req.BusinessUnit)
		dstKey := srcKey.WithWarehouse(line.DestWarehouse)

		if err := env.Ledger.TryDecrement(ctx, srcKey, line.Qty); err != nil {
			return nil, fmt.Errorf("transfer line %d: %w", i, err)
		}
		if err := env.Ledger.UpsertIncrement(ctx, dstKey, line.Qty, 0, line.Defaults()); err != nil {
			return nil, fmt.Errorf("transfer line %d: %w", i, err)
		}

		seq, err := env.NextKey(ctx, req)
		if err != nil {
			return nil, err
		}
		rec := baseRecord(seq, entity.KindTransfer, req)
		rec.BoxID = line.BoxID
		rec.ItemCode = line.ItemCode
		rec.Qty = line.Qty
		rec.SourceWarehouse = line.Warehouse
		rec.DestWarehouse = line.DestWarehouse
		if err := env.Log.Append(ctx, rec); err != nil {
			return nil, fmt.Errorf("transfer line %d: %w", i, err)
		}

		applied.addKey(seq)
		applied.touch(srcKey, dstKey)
	}
	return applied, nil
}
