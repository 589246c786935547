package movement

import (
	"boxledger/internal/core/entity"
)

// Line is one scanned box within a movement batch.
type Line struct {
	// Warehouse is the line's primary warehouse: the source for stock-out
	// kinds, the destination for stock-in kinds.
	Warehouse string `json:"warehouse"`

	// DestWarehouse is the destination for transfers.
	DestWarehouse string `json:"destWarehouse,omitempty"`

	BoxID    string `json:"boxId"`
	ItemCode string `json:"itemCode"`
	Qty      int64  `json:"qty"`

	// DefectFlag marks a defective return.
	DefectFlag bool `json:"defectFlag,omitempty"`

	// RefKey is the sequence key of the record a cancellation reverses.
	// Cancellation lines carry only this; box, item and quantity are read
	// from the original record.
	RefKey string `json:"refKey,omitempty"`

	// BoxType and PartRef seed ledger rows created by stock-in movements.
	BoxType string `json:"boxType,omitempty"`
	PartRef string `json:"partRef,omitempty"`
}

// Key builds the ledger key of the line's primary warehouse.
func (l Line) Key(businessUnit string) entity.StockKey {
	return entity.StockKey{
		BusinessUnit: businessUnit,
		Warehouse:    l.Warehouse,
		BoxID:        l.BoxID,
		ItemCode:     l.ItemCode,
	}
}

// Defaults returns the creation defaults the line carries.
func (l Line) Defaults() entity.CreationDefaults {
	return entity.CreationDefaults{BoxType: l.BoxType, PartRef: l.PartRef}
}

// Request is one fully-parsed movement batch handed to the orchestrator.
// The excluded presentation layer owns barcode parsing and session handling;
// by the time a Request exists, every field is plain data.
type Request struct {
	Kind         entity.MovementKind `json:"kind"`
	BusinessUnit string              `json:"businessUnit"`
	WorkDate     string              `json:"workDate"`
	Actor        string              `json:"actor"`

	// IdempotencyKey is the caller-supplied dedup key (scanned serial plus
	// a client nonce). Empty disables deduplication for the request.
	IdempotencyKey string `json:"idempotencyKey,omitempty"`

	// Reason carries the disposal/return reason code.
	Reason string `json:"reason,omitempty"`

	// ProcessCode selects the consuming/producing process for production
	// movements.
	ProcessCode string `json:"processCode,omitempty"`

	// SourceBoxID/SourceWarehouse identify the box a repack splits; the
	// lines then describe the new boxes.
	SourceBoxID     string `json:"sourceBoxId,omitempty"`
	SourceWarehouse string `json:"sourceWarehouse,omitempty"`

	Lines []Line `json:"lines"`
}

// Result is the committed outcome of a movement request.
type Result struct {
	// CommittedKeys are the sequence keys of all written movement records,
	// in emission order.
	CommittedKeys []string `json:"committedKeys"`

	// Affected are fresh snapshots of every ledger row the batch touched.
	Affected []entity.StockRecord `json:"affected"`

	// Replayed is set when the result was served from the idempotency
	// store for a duplicate request. Replays are not errors.
	Replayed bool `json:"replayed,omitempty"`
}
