package entity

import (
	"time"
)

// MovementKind identifies the stock operation a movement record describes.
type MovementKind string

const (
	KindIssue            MovementKind = "ISSUE"
	KindReceive          MovementKind = "RECEIVE"
	KindTransfer         MovementKind = "TRANSFER"
	KindDisposal         MovementKind = "DISPOSAL"
	KindRepack           MovementKind = "REPACK"
	KindReturn           MovementKind = "RETURN"
	KindShipment         MovementKind = "SHIPMENT"
	KindShipmentCancel   MovementKind = "SHIPMENT_CANCEL"
	KindReturnCancel     MovementKind = "RETURN_CANCEL"
	KindProductionInput  MovementKind = "PRODUCTION_INPUT"
	KindProductionResult MovementKind = "PRODUCTION_RESULT"
)

// Valid reports whether k is a known movement kind.
func (k MovementKind) Valid() bool {
	switch k {
	case KindIssue, KindReceive, KindTransfer, KindDisposal, KindRepack,
		KindReturn, KindShipment, KindShipmentCancel, KindReturnCancel,
		KindProductionInput, KindProductionResult:
		return true
	}
	return false
}

// Sign returns the ledger direction implied by the kind: +1 for stock-in,
// -1 for stock-out, 0 for kinds that touch both sides (transfer, repack).
func (k MovementKind) Sign() int {
	switch k {
	case KindReceive, KindReturn, KindShipmentCancel, KindProductionResult:
		return +1
	case KindIssue, KindDisposal, KindShipment, KindReturnCancel, KindProductionInput:
		return -1
	}
	return 0
}

// ReversalOf returns the kind a cancellation reverses, or "" when the kind
// is not a cancellation. Disposal has no reversal by design.
func (k MovementKind) ReversalOf() MovementKind {
	switch k {
	case KindShipmentCancel:
		return KindShipment
	case KindReturnCancel:
		return KindReturn
	}
	return ""
}

// MovementRecord is one immutable entry of the movement log, keyed by its
// per-work-date sequence key. Quantity is stored unsigned; the sign is
// implied by Kind. Reversed is bookkeeping for cancellations and never
// alters the recorded quantities.
type MovementRecord struct {
	SequenceKey  string       `db:"sequence_key" json:"sequenceKey"`
	Kind         MovementKind `db:"kind" json:"kind"`
	BusinessUnit string       `db:"business_unit" json:"businessUnit"`
	BoxID        string       `db:"box_id" json:"boxId"`
	ItemCode     string       `db:"item_code" json:"itemCode"`
	Qty          int64        `db:"qty" json:"qty"`

	// SourceWarehouse/DestWarehouse: transfers carry both; one-sided
	// movements carry the side their kind implies.
	SourceWarehouse string `db:"source_warehouse" json:"sourceWarehouse,omitempty"`
	DestWarehouse   string `db:"dest_warehouse" json:"destWarehouse,omitempty"`

	// RelatedKey points back at the record a cancellation reverses.
	RelatedKey string `db:"related_key" json:"relatedKey,omitempty"`

	// SourceBoxID references the box a repack split from.
	SourceBoxID string `db:"source_box_id" json:"sourceBoxId,omitempty"`

	// Reason carries the disposal/return reason code when applicable.
	Reason string `db:"reason" json:"reason,omitempty"`

	Actor    string `db:"actor" json:"actor"`
	WorkDate string `db:"work_date" json:"workDate"`

	Reversed  bool      `db:"reversed" json:"reversed"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// SignedQty returns the quantity with the sign implied by the kind.
func (m *MovementRecord) SignedQty() int64 {
	if m.Kind.Sign() < 0 {
		return -m.Qty
	}
	return m.Qty
}
