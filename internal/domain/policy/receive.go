package policy

import (
	"context"
	"fmt"

	"boxledger/internal/core/entity"
	"boxledger/internal/domain/movement"
)

// Receive books material into a warehouse: one upsert increment and one
// RECEIVE record per line. First receipt of a box creates its ledger row
// seeded with the line's classification defaults.
type Receive struct{}

func (Receive) Kind() entity.MovementKind { return entity.KindReceive }

func (Receive) Validate(req *movement.Request) error {
	return requireLineFields(req)
}

func (Receive) Apply(ctx context.Context, env Env, req *movement.Request) (*Applied, error) {
	applied := &Applied{}
	for i, line := range req.Lines {
		key := line.Key(req.BusinessUnit)
		if err := env.Ledger.UpsertIncrement(ctx, key, line.Qty, 0, line.Defaults()); err != nil {
			return nil, fmt.Errorf("receive line %d: %w", i, err)
		}

		seq, err := env.NextKey(ctx, req)
		if err != nil {
			return nil, err
		}
		rec := baseRecord(seq, entity.KindReceive, req)
		rec.BoxID = line.BoxID
		rec.ItemCode = line.ItemCode
		rec.Qty = line.Qty
		rec.DestWarehouse = line.Warehouse
		if err := env.Log.Append(ctx, rec); err != nil {
			return nil, fmt.Errorf("receive line %d: %w", i, err)
		}

		applied.addKey(seq)
		applied.touch(key)
	}
	return applied, nil
}
