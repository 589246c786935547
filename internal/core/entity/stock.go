// Package entity provides core domain entities of the stock ledger.
package entity

import (
	"time"
)

// StockKey is the composite key of a ledger row: one physical box holding
// one item in one warehouse of one business unit.
type StockKey struct {
	BusinessUnit string `db:"business_unit" json:"businessUnit"`
	Warehouse    string `db:"warehouse_code" json:"warehouse"`
	BoxID        string `db:"box_id" json:"boxId"`
	ItemCode     string `db:"item_code" json:"itemCode"`
}

// IsZero reports whether any key component is missing.
func (k StockKey) IsZero() bool {
	return k.BusinessUnit == "" || k.Warehouse == "" || k.BoxID == "" || k.ItemCode == ""
}

// WithWarehouse returns the same box/item key relocated to another warehouse.
func (k StockKey) WithWarehouse(warehouse string) StockKey {
	k.Warehouse = warehouse
	return k
}

// StockRecord is one row of the box-indexed stock ledger.
//
// GoodQty is never negative. DefectQty is a sub-count of quantity that
// arrived defective, never negative, and not bounded by GoodQty. Rows are
// never physically deleted: disposal zeroes the quantities and sets the
// disposed flag, preserving traceability.
type StockRecord struct {
	StockKey

	GoodQty   int64 `db:"good_qty" json:"goodQty"`
	DefectQty int64 `db:"defect_qty" json:"defectQty"`

	// BoxType and PartRef are denormalized classification fields, set on
	// first creation and immutable afterwards.
	BoxType string `db:"box_type" json:"boxType"`
	PartRef string `db:"part_ref" json:"partRef"`

	Disposed bool `db:"disposed" json:"disposed"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// IsEmpty reports whether the record holds no stock (soft-zero).
func (r *StockRecord) IsEmpty() bool {
	return r.GoodQty == 0 && r.DefectQty == 0
}

// CreationDefaults seeds classification fields when an upsert creates a new
// ledger row.
type CreationDefaults struct {
	BoxType string
	PartRef string
}
