package policy

import (
	"context"
	"fmt"

	"boxledger/internal/core/apperror"
	"boxledger/internal/core/entity"
	"boxledger/internal/domain/movement"
)

// Shipment decrements a box for outbound delivery and logs SHIPMENT.
type Shipment struct{}

func (Shipment) Kind() entity.MovementKind { return entity.KindShipment }

func (Shipment) Validate(req *movement.Request) error {
	return requireLineFields(req)
}

func (Shipment) Apply(ctx context.Context, env Env, req *movement.Request) (*Applied, error) {
	applied := &Applied{}
	for i, line := range req.Lines {
		key := line.Key(req.BusinessUnit)
		if err := env.Ledger.TryDecrement(ctx, key, line.Qty); err != nil {
			return nil, fmt.Errorf("shipment line %d: %w", i, err)
		}

		seq, err := env.NextKey(ctx, req)
		if err != nil {
			return nil, err
		}
		rec := baseRecord(seq, entity.KindShipment, req)
		rec.BoxID = line.BoxID
		rec.ItemCode = line.ItemCode
		rec.Qty = line.Qty
		rec.SourceWarehouse = line.Warehouse
		if err := env.Log.Append(ctx, rec); err != nil {
			return nil, fmt.Errorf("shipment line %d: %w", i, err)
		}

		applied.addKey(seq)
		applied.touch(key)
	}
	return applied, nil
}

// ShipmentCancel restores the exact quantity a prior shipment removed.
// The original record must exist and not be already reversed; cancelling
// twice is rejected with AlreadyReversed and leaves stock unchanged.
type ShipmentCancel struct{}

func (ShipmentCancel) Kind() entity.MovementKind { return entity.KindShipmentCancel }

func (ShipmentCancel) Validate(req *movement.Request) error {
	for i, l := range req.Lines {
		if l.RefKey == "" {
			return apperror.NewValidation("reference sequence key is required").WithDetail("line", i)
		}
	}
	return nil
}

func (ShipmentCancel) Apply(ctx context.Context, env Env, req *movement.Request) (*Applied, error) {
	applied := &Applied{}
	for i, line := range req.Lines {
		orig, err := env.Log.FindReversalTarget(ctx, entity.KindShipmentCancel.ReversalOf(), line.RefKey)
		if err != nil {
			return nil, fmt.Errorf("shipment cancel line %d: %w", i, err)
		}

		key := entity.StockKey{
			BusinessUnit: orig.BusinessUnit,
			Warehouse:    orig.SourceWarehouse,
			BoxID:        orig.BoxID,
			ItemCode:     orig.ItemCode,
		}
		if err := env.Ledger.UpsertIncrement(ctx, key, orig.Qty, 0, entity.CreationDefaults{}); err != nil {
			return nil, fmt.Errorf("shipment cancel line %d: %w", i, err)
		}
		if err := env.Log.MarkReversed(ctx, orig.SequenceKey); err != nil {
			return nil, fmt.Errorf("shipment cancel line %d: %w", i, err)
		}

		seq, err := env.NextKey(ctx, req)
		if err != nil {
			return nil, err
		}
		rec := baseRecord(seq, entity.KindShipmentCancel, req)
		rec.BoxID = orig.BoxID
		rec.ItemCode = orig.ItemCode
		rec.Qty = orig.Qty
		rec.DestWarehouse = orig.SourceWarehouse
		rec.RelatedKey = orig.SequenceKey
		if err := env.Log.Append(ctx, rec); err != nil {
			return nil, fmt.Errorf("shipment cancel line %d: %w", i, err)
		}

		applied.addKey(seq)
		applied.touch(key)
	}
	return applied, nil
}
