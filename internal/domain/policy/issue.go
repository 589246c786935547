package policy

import (
	"context"
	"fmt"

	"boxledger/internal/core/entity"
	"boxledger/internal/domain/movement"
)

// Issue hands material out of a warehouse: one conditional decrement and one
// ISSUE record per line. Any short line fails the whole batch.
type Issue struct{}

func (Issue) Kind() entity.MovementKind { return entity.KindIssue }

func (Issue) Validate(req *movement.Request) error {
	return requireLineFields(req)
}

func (Issue) Apply(ctx context.Context, env Env, req *movement.Request) (*Applied, error) {
	applied := &Applied{}
	for i, line := range req.Lines {
		key := line.Key(req.BusinessUnit)
		if err := env.Ledger.TryDecrement(ctx, key, line.Qty); err != nil {
			return nil, fmt.Errorf("issue line %d: %w", i, err)
		}

		seq, err := env.NextKey(ctx, req)
		if err != nil {
			return nil, err
		}
		rec := baseRecord(seq, entity.KindIssue, req)
		rec.BoxID = line.BoxID
		rec.ItemCode = line.ItemCode
		rec.Qty = line.Qty
		rec.SourceWarehouse = line.Warehouse
		if err := env.Log.Append(ctx, rec); err != nil {
			return nil, fmt.Errorf("issue line %d: %w", i, err)
		}

		applied.addKey(seq)
		applied.touch(key)
	}
	return applied, nil
}
