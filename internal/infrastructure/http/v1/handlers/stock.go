package handlers

import (
	"github.com/gin-gonic/gin"

	"boxledger/internal/core/apperror"
	"boxledger/internal/core/entity"
	"boxledger/internal/domain/ledger"
	"boxledger/internal/infrastructure/http/v1/dto"
)

// StockHandler handles stock ledger queries.
type StockHandler struct {
	*BaseHandler
	ledger ledger.Ledger
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, l ledger.Ledger) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		ledger:      l,
	}
}

// List handles GET /stock?businessUnit=&warehouse=
// Returns the non-empty ledger rows of one warehouse.
func (h *StockHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	businessUnit := c.Query("businessUnit")
	warehouse := c.Query("warehouse")
	if businessUnit == "" || warehouse == "" {
		h.Error(c, apperror.NewValidation("businessUnit and warehouse are required"))
		return
	}

	records, err := h.ledger.ListByWarehouse(ctx, businessUnit, warehouse)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.StockRecordResponse, len(records))
	for i, rec := range records {
		items[i] = dto.FromStockRecord(rec)
	}
	h.OK(c, dto.StockListResponse{Items: items, TotalCount: len(items)})
}

// Get handles GET /stock/:boxId?businessUnit=&warehouse=&itemCode=
// Returns one ledger row. PDA screens poll this after scanning a box.
func (h *StockHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	key := entity.StockKey{
		BusinessUnit: c.Query("businessUnit"),
		Warehouse:    c.Query("warehouse"),
		BoxID:        c.Param("boxId"),
		ItemCode:     c.Query("itemCode"),
	}
	if key.IsZero() {
		h.Error(c, apperror.NewValidation("businessUnit, warehouse and itemCode are required"))
		return
	}

	rec, err := h.ledger.Get(ctx, key)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromStockRecord(rec))
}

// RegisterRoutes registers stock routes.
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:boxId", h.Get)
}
