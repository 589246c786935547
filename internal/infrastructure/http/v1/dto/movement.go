package dto

import (
	"time"

	"boxledger/internal/core/entity"
	"boxledger/internal/domain/movement"
)

// MovementLineRequest is one scanned box within a submitted batch.
type MovementLineRequest struct {
	Warehouse     string `json:"warehouse"`
	DestWarehouse string `json:"destWarehouse,omitempty"`
	BoxID         string `json:"boxId"`
	ItemCode      string `json:"itemCode"`
	Qty           int64  `json:"qty"`
	DefectFlag    bool   `json:"defectFlag,omitempty"`
	RefKey        string `json:"refKey,omitempty"`
	BoxType       string `json:"boxType,omitempty"`
	PartRef       string `json:"partRef,omitempty"`
}

// MovementRequest is the submitted movement batch. The actor comes from the
// validated token, never from the body.
type MovementRequest struct {
	Kind            string                `json:"kind" binding:"required"`
	BusinessUnit    string                `json:"businessUnit" binding:"required"`
	WorkDate        string                `json:"workDate" binding:"required"`
	IdempotencyKey  string                `json:"idempotencyKey,omitempty"`
	Reason          string                `json:"reason,omitempty"`
	ProcessCode     string                `json:"processCode,omitempty"`
	SourceBoxID     string                `json:"sourceBoxId,omitempty"`
	SourceWarehouse string                `json:"sourceWarehouse,omitempty"`
	Lines           []MovementLineRequest `json:"lines" binding:"required"`
}

// ToDomain converts the request to the engine's shape.
func (r MovementRequest) ToDomain(actor string) *movement.Request {
	lines := make([]movement.Line, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = movement.Line{
			Warehouse:     l.Warehouse,
			DestWarehouse: l.DestWarehouse,
			BoxID:         l.BoxID,
			ItemCode:      l.ItemCode,
			Qty:           l.Qty,
			DefectFlag:    l.DefectFlag,
			RefKey:        l.RefKey,
			BoxType:       l.BoxType,
			PartRef:       l.PartRef,
		}
	}
	return &movement.Request{
		Kind:            entity.MovementKind(r.Kind),
		BusinessUnit:    r.BusinessUnit,
		WorkDate:        r.WorkDate,
		Actor:           actor,
		IdempotencyKey:  r.IdempotencyKey,
		Reason:          r.Reason,
		ProcessCode:     r.ProcessCode,
		SourceBoxID:     r.SourceBoxID,
		SourceWarehouse: r.SourceWarehouse,
		Lines:           lines,
	}
}

// MovementResponse is the committed outcome of a movement submission.
type MovementResponse struct {
	CommittedKeys []string              `json:"committedKeys"`
	Affected      []StockRecordResponse `json:"affected"`
	Replayed      bool                  `json:"replayed,omitempty"`
}

// FromMovementResult maps the engine result to its API shape.
func FromMovementResult(res *movement.Result) MovementResponse {
	affected := make([]StockRecordResponse, len(res.Affected))
	for i, rec := range res.Affected {
		affected[i] = FromStockRecord(rec)
	}
	return MovementResponse{
		CommittedKeys: res.CommittedKeys,
		Affected:      affected,
		Replayed:      res.Replayed,
	}
}

// MovementRecordResponse is one movement log entry as returned by the API.
type MovementRecordResponse struct {
	SequenceKey     string    `json:"sequenceKey"`
	Kind            string    `json:"kind"`
	BusinessUnit    string    `json:"businessUnit"`
	BoxID           string    `json:"boxId"`
	ItemCode        string    `json:"itemCode"`
	Qty             int64     `json:"qty"`
	SourceWarehouse string    `json:"sourceWarehouse,omitempty"`
	DestWarehouse   string    `json:"destWarehouse,omitempty"`
	RelatedKey      string    `json:"relatedKey,omitempty"`
	SourceBoxID     string    `json:"sourceBoxId,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	Actor           string    `json:"actor"`
	WorkDate        string    `json:"workDate"`
	Reversed        bool      `json:"reversed"`
	CreatedAt       time.Time `json:"createdAt"`
}

// FromMovementRecord maps a log entry to its API shape.
func FromMovementRecord(m entity.MovementRecord) MovementRecordResponse {
	return MovementRecordResponse{
		SequenceKey:     m.SequenceKey,
		Kind:            string(m.Kind),
		BusinessUnit:    m.BusinessUnit,
		BoxID:           m.BoxID,
		ItemCode:        m.ItemCode,
		Qty:             m.Qty,
		SourceWarehouse: m.SourceWarehouse,
		DestWarehouse:   m.DestWarehouse,
		RelatedKey:      m.RelatedKey,
		SourceBoxID:     m.SourceBoxID,
		Reason:          m.Reason,
		Actor:           m.Actor,
		WorkDate:        m.WorkDate,
		Reversed:        m.Reversed,
		CreatedAt:       m.CreatedAt,
	}
}

// MovementListResponse is a list of movement log entries.
type MovementListResponse struct {
	Items      []MovementRecordResponse `json:"items"`
	TotalCount int                      `json:"totalCount"`
}
