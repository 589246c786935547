package dto

import (
	"time"

	"boxledger/internal/core/entity"
)

// StockRecordResponse is one ledger row as returned by the API.
type StockRecordResponse struct {
	BusinessUnit string    `json:"businessUnit"`
	Warehouse    string    `json:"warehouse"`
	BoxID        string    `json:"boxId"`
	ItemCode     string    `json:"itemCode"`
	GoodQty      int64     `json:"goodQty"`
	DefectQty    int64     `json:"defectQty"`
	BoxType      string    `json:"boxType,omitempty"`
	PartRef      string    `json:"partRef,omitempty"`
	Disposed     bool      `json:"disposed"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// FromStockRecord maps a ledger row to its API shape.
func FromStockRecord(r entity.StockRecord) StockRecordResponse {
	return StockRecordResponse{
		BusinessUnit: r.BusinessUnit,
		Warehouse:    r.Warehouse,
		BoxID:        r.BoxID,
		ItemCode:     r.ItemCode,
		GoodQty:      r.GoodQty,
		DefectQty:    r.DefectQty,
		BoxType:      r.BoxType,
		PartRef:      r.PartRef,
		Disposed:     r.Disposed,
		UpdatedAt:    r.UpdatedAt,
	}
}

// StockListResponse is a list of ledger rows.
type StockListResponse struct {
	Items      []StockRecordResponse `json:"items"`
	TotalCount int                   `json:"totalCount"`
}
