package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"boxledger/internal/core/apperror"
	"boxledger/internal/core/guard"
	"boxledger/internal/domain/movement"
	"boxledger/internal/domain/policy"
	"boxledger/internal/domain/sequence"
)

// validate performs every check that must pass before any storage is touched:
// header fields, line shape, duplicate boxes within the batch, kind-specific
// policy checks, guard rules, and catalog existence of referenced warehouses.
func (o *Orchestrator) validate(ctx context.Context, pol policy.Policy, req *movement.Request) error {
	if req.BusinessUnit == "" {
		return apperror.NewValidation("business unit is required")
	}
	if req.Actor == "" {
		return apperror.NewValidation("actor is required")
	}
	if !sequence.ValidWorkDate(req.WorkDate) {
		return apperror.NewValidation("work date must be YYYYMMDD")
	}
	if len(req.Lines) == 0 {
		return apperror.NewValidation("at least one line is required")
	}

	if err := checkDuplicateLines(req); err != nil {
		return err
	}
	if err := pol.Validate(req); err != nil {
		return err
	}
	if err := o.checkGuards(req); err != nil {
		return err
	}
	return o.checkWarehouses(ctx, req)
}

// checkDuplicateLines rejects the same box appearing twice in one batch.
// A batch mutating one ledger row from two lines is almost always a double
// scan; the operator resolves it client-side.
func checkDuplicateLines(req *movement.Request) error {
	seen := make(map[string]int, len(req.Lines))
	for i, l := range req.Lines {
		id := l.RefKey
		if id == "" {
			id = l.Warehouse + "\x00" + l.BoxID + "\x00" + l.ItemCode
		}
		if first, dup := seen[id]; dup {
			return apperror.NewValidation("duplicate box in batch").
				WithDetail("line", i).
				WithDetail("duplicate_of", first).
				WithDetail("box_id", l.BoxID)
		}
		seen[id] = i
	}
	return nil
}

// checkGuards evaluates the configured guard rules per line. Cancellation
// lines carry only a reference key and are exempt.
func (o *Orchestrator) checkGuards(req *movement.Request) error {
	if o.deps.Guard == nil {
		return nil
	}
	for _, l := range req.Lines {
		if l.RefKey != "" && l.BoxID == "" {
			continue
		}
		in := guard.LineInput{
			Kind:          string(req.Kind),
			Warehouse:     l.Warehouse,
			DestWarehouse: l.DestWarehouse,
			BoxID:         l.BoxID,
			ItemCode:      l.ItemCode,
			Qty:           l.Qty,
			Defect:        l.DefectFlag,
		}
		if err := o.deps.Guard.CheckLine(in); err != nil {
			return err
		}
	}
	return nil
}

// checkWarehouses verifies every warehouse code the request names against the
// catalog. Unknown codes are validation failures, not storage errors.
func (o *Orchestrator) checkWarehouses(ctx context.Context, req *movement.Request) error {
	codes := make(map[string]struct{})
	if req.SourceWarehouse != "" {
		codes[req.SourceWarehouse] = struct{}{}
	}
	for _, l := range req.Lines {
		if l.Warehouse != "" {
			codes[l.Warehouse] = struct{}{}
		}
		if l.DestWarehouse != "" {
			codes[l.DestWarehouse] = struct{}{}
		}
	}

	for code := range codes {
		if _, err := o.deps.Catalog.GetWarehouse(ctx, code); err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewValidation("unknown warehouse").WithDetail("warehouse", code)
			}
			return fmt.Errorf("warehouse lookup: %w", err)
		}
	}
	return nil
}

// requestHash fingerprints a request for idempotency-key reuse detection.
// Two submissions under one key must carry the same payload.
func requestHash(req *movement.Request) string {
	payload, err := json.Marshal(req)
	if err != nil {
		// Request structs are plain data; marshal cannot realistically fail.
		payload = []byte(fmt.Sprintf("%+v", req))
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
