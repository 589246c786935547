package handlers

import (
	"github.com/gin-gonic/gin"

	"boxledger/internal/core/apperror"
	"boxledger/internal/core/entity"
	"boxledger/internal/domain/orchestrator"
	"boxledger/internal/domain/sequence"
	"boxledger/internal/infrastructure/http/v1/dto"
	"boxledger/internal/infrastructure/storage/postgres/movement_repo"
)

// MovementHandler handles movement submission and log queries.
type MovementHandler struct {
	*BaseHandler
	orch *orchestrator.Orchestrator
	log  *movement_repo.LogRepo
}

// NewMovementHandler creates a new movement handler.
func NewMovementHandler(base *BaseHandler, orch *orchestrator.Orchestrator, log *movement_repo.LogRepo) *MovementHandler {
	return &MovementHandler{
		BaseHandler: base,
		orch:        orch,
		log:         log,
	}
}

// Submit handles POST /movements
func (h *MovementHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.MovementRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if !entity.MovementKind(req.Kind).Valid() {
		h.Error(c, apperror.NewValidation("unknown movement kind").WithDetail("kind", req.Kind))
		return
	}

	result, err := h.orch.Submit(ctx, req.ToDomain(h.GetOperatorID(c)))
	if err != nil {
		h.Error(c, err)
		return
	}

	if result.Replayed {
		h.OK(c, dto.FromMovementResult(result))
		return
	}
	h.Created(c, dto.FromMovementResult(result))
}

// GetByKey handles GET /movements/:sequenceKey
func (h *MovementHandler) GetByKey(c *gin.Context) {
	ctx := c.Request.Context()

	rec, err := h.log.FindByKey(ctx, c.Param("sequenceKey"))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromMovementRecord(rec))
}

// List handles GET /movements?businessUnit=&workDate= and
// GET /movements?businessUnit=&boxId=
func (h *MovementHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	businessUnit := c.Query("businessUnit")
	if businessUnit == "" {
		h.Error(c, apperror.NewValidation("businessUnit is required"))
		return
	}

	if boxID := c.Query("boxId"); boxID != "" {
		limit := h.ParseIntQuery(c, "limit", 100)
		records, err := h.log.ListByBox(ctx, businessUnit, boxID, limit)
		if err != nil {
			h.Error(c, err)
			return
		}
		h.respondList(c, records)
		return
	}

	workDate := c.Query("workDate")
	if !sequence.ValidWorkDate(workDate) {
		h.Error(c, apperror.NewValidation("workDate must be YYYYMMDD"))
		return
	}

	records, err := h.log.ListByWorkDate(ctx, businessUnit, workDate)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.respondList(c, records)
}

func (h *MovementHandler) respondList(c *gin.Context, records []entity.MovementRecord) {
	items := make([]dto.MovementRecordResponse, len(records))
	for i, rec := range records {
		items[i] = dto.FromMovementRecord(rec)
	}
	h.OK(c, dto.MovementListResponse{Items: items, TotalCount: len(items)})
}

// RegisterRoutes registers movement routes.
func (h *MovementHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Submit)
	rg.GET("", h.List)
	rg.GET("/:sequenceKey", h.GetByKey)
}
