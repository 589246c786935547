// Package catalog is the read-only code-lookup collaborator: warehouse and
// process master data the orchestrator consults before validation completes.
// The engine never mutates catalog data.
package catalog

import (
	"context"
)

// Warehouse is one warehouse code row.
type Warehouse struct {
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`

	// DefectWarehouse, when set, receives the implicit transfer of
	// defect-flagged returns booked into this warehouse.
	DefectWarehouse string `db:"defect_warehouse" json:"defectWarehouse,omitempty"`
}

// Process is one production process row.
type Process struct {
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`

	// DefaultWarehouse is where the process consumes raw material from;
	// input scanned elsewhere is transferred here first.
	DefaultWarehouse string `db:"default_warehouse" json:"defaultWarehouse"`

	// OutputWarehouse receives the process's finished goods.
	OutputWarehouse string `db:"output_warehouse" json:"outputWarehouse"`
}

// Lookup resolves warehouse and process codes. Unknown codes surface as
// NotFound errors, which the orchestrator reports as validation failures.
type Lookup interface {
	GetWarehouse(ctx context.Context, code string) (Warehouse, error)
	GetProcess(ctx context.Context, code string) (Process, error)
}
