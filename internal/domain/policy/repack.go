package policy

import (
	"context"
	"fmt"

	"boxledger/internal/core/apperror"
	"boxledger/internal/core/entity"
	"boxledger/internal/domain/movement"
)

// Repack splits a source box into new boxes within one warehouse. The sum of
// new-box quantities must fit in the source's good quantity — checked before
// any ledger row is touched — then one decrement covers the total and each
// new box gets its own upsert and REPACK record referencing the source box.
// Classification fields are inherited from the source row.
type Repack struct{}

func (Repack) Kind() entity.MovementKind { return entity.KindRepack }

func (Repack) Validate(req *movement.Request) error {
	if req.SourceBoxID == "" || req.SourceWarehouse == "" {
		return apperror.NewValidation("repack source box and warehouse are required")
	}
	if len(req.Lines) == 0 {
		return apperror.NewValidation("at least one new box is required")
	}
	item := req.Lines[0].ItemCode
	for i, l := range req.Lines {
		if l.BoxID == "" || l.ItemCode == "" {
			return apperror.NewValidation("new box and item are required").WithDetail("line", i)
		}
		if l.Qty <= 0 {
			return apperror.NewValidation("quantity must be positive").WithDetail("line", i)
		}
		if l.BoxID == req.SourceBoxID {
			return apperror.NewValidation("new box must differ from source box").WithDetail("line", i)
		}
		// A repack splits one box of one item; every new box must carry the
		// source item, or the split would mint stock of an item the source
		// never held.
		if l.ItemCode != item {
			return apperror.NewValidation("all new boxes must carry the source item").
				WithDetail("line", i).
				WithDetail("item_code", l.ItemCode).
				WithDetail("source_item_code", item)
		}
	}
	return nil
}

func (Repack) Apply(ctx context.Context, env Env, req *movement.Request) (*Applied, error) {
	srcKey := entity.StockKey{
		BusinessUnit: req.BusinessUnit,
		Warehouse:    req.SourceWarehouse,
		BoxID:        req.SourceBoxID,
		ItemCode:     req.Lines[0].ItemCode,
	}

	var total int64
	for _, l := range req.Lines {
		total += l.Qty
	}

	// Reject over-allocation before any ledger row is touched.
	src, err := env.Ledger.Get(ctx, srcKey)
	if err != nil {
		return nil, fmt.Errorf("repack source: %w", err)
	}
	if src.GoodQty < total {
		return nil, apperror.NewInsufficientStock(req.SourceBoxID, total, src.GoodQty)
	}

	applied := &Applied{}
	if err := env.Ledger.TryDecrement(ctx, srcKey, total); err != nil {
		return nil, fmt.Errorf("repack source: %w", err)
	}
	applied.touch(srcKey)

	inherited := entity.CreationDefaults{BoxType: src.BoxType, PartRef: src.PartRef}
	for i, line := range req.Lines {
		warehouse := line.Warehouse
		if warehouse == "" {
			warehouse = req.SourceWarehouse
		}
		newKey := entity.StockKey{
			BusinessUnit: req.BusinessUnit,
			Warehouse:    warehouse,
			BoxID:        line.BoxID,
			ItemCode:     line.ItemCode,
		}
		if err := env.Ledger.UpsertIncrement(ctx, newKey, line.Qty, 0, inherited); err != nil {
			return nil, fmt.Errorf("repack line %d: %w", i, err)
		}

		seq, err := env.NextKey(ctx, req)
		if err != nil {
			return nil, err
		}
		rec := baseRecord(seq, entity.KindRepack, req)
		rec.BoxID = line.BoxID
		rec.ItemCode = line.ItemCode
		rec.Qty = line.Qty
		rec.SourceWarehouse = req.SourceWarehouse
		rec.DestWarehouse = warehouse
		rec.SourceBoxID = req.SourceBoxID
		if err := env.Log.Append(ctx, rec); err != nil {
			return nil, fmt.Errorf("repack line %d: %w", i, err)
		}

		applied.addKey(seq)
		applied.touch(newKey)
	}
	return applied, nil
}
