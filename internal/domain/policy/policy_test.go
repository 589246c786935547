package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boxledger/internal/core/apperror"
	"boxledger/internal/core/entity"
	"boxledger/internal/domain/catalog"
	"boxledger/internal/domain/ledger"
	"boxledger/internal/domain/movement"
	"boxledger/internal/domain/sequence"
)

const (
	testBU       = "PLANT-01"
	testWorkDate = "20260115"
)

type testEnv struct {
	Env
	ledger  *ledger.Memory
	log     *movement.MemoryLog
	catalog *catalog.Memory
}

func newTestEnv() *testEnv {
	led := ledger.NewMemory()
	log := movement.NewMemoryLog()
	cat := catalog.NewMemory()
	return &testEnv{
		Env: Env{
			Ledger:    led,
			Log:       log,
			Sequence:  sequence.NewMemory(),
			Catalog:   cat,
			Namespace: sequence.DefaultNamespace,
		},
		ledger:  led,
		log:     log,
		catalog: cat,
	}
}

func (e *testEnv) seed(warehouse, boxID, itemCode string, goodQty, defectQty int64) {
	e.ledger.Seed(entity.StockRecord{
		StockKey: entity.StockKey{
			BusinessUnit: testBU,
			Warehouse:    warehouse,
			BoxID:        boxID,
			ItemCode:     itemCode,
		},
		GoodQty:   goodQty,
		DefectQty: defectQty,
	})
}

func (e *testEnv) get(t *testing.T, warehouse, boxID, itemCode string) entity.StockRecord {
	t.Helper()
	rec, err := e.ledger.Get(context.Background(), entity.StockKey{
		BusinessUnit: testBU,
		Warehouse:    warehouse,
		BoxID:        boxID,
		ItemCode:     itemCode,
	})
	require.NoError(t, err)
	return rec
}

func baseReq(kind entity.MovementKind, lines ...movement.Line) *movement.Request {
	return &movement.Request{
		Kind:         kind,
		BusinessUnit: testBU,
		WorkDate:     testWorkDate,
		Actor:        "OP-100",
		Lines:        lines,
	}
}

func TestIssue_Apply(t *testing.T) {
	env := newTestEnv()
	env.seed("WH-A", "BOX-1", "ITEM-1", 50, 0)

	req := baseReq(entity.KindIssue, movement.Line{
		Warehouse: "WH-A", BoxID: "BOX-1", ItemCode: "ITEM-1", Qty: 20,
	})
	applied, err := Issue{}.Apply(context.Background(), env.Env, req)
	require.NoError(t, err)
	require.Len(t, applied.Keys, 1)

	assert.Equal(t, int64(30), env.get(t, "WH-A", "BOX-1", "ITEM-1").GoodQty)

	rec, err := env.log.FindByKey(context.Background(), applied.Keys[0])
	require.NoError(t, err)
	assert.Equal(t, entity.KindIssue, rec.Kind)
	assert.Equal(t, "WH-A", rec.SourceWarehouse)
	assert.Equal(t, int64(-20), rec.SignedQty())
}

func TestIssue_InsufficientStock(t *testing.T) {
	env := newTestEnv()
	env.seed("WH-A", "BOX-1", "ITEM-1", 50, 0)

	req := baseReq(entity.KindIssue, movement.Line{
		Warehouse: "WH-A", BoxID: "BOX-1", ItemCode: "ITEM-1", Qty: 80,
	})
	_, err := Issue{}.Apply(context.Background(), env.Env, req)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))
	assert.True(t, apperror.IsBusinessRejection(err))

	// The short decrement must not have touched the row.
	assert.Equal(t, int64(50), env.get(t, "WH-A", "BOX-1", "ITEM-1").GoodQty)
}

func TestIssue_UnknownBox(t *testing.T) {
	env := newTestEnv()

	req := baseReq(entity.KindIssue, movement.Line{
		Warehouse: "WH-A", BoxID: "NO-SUCH-BOX", ItemCode: "ITEM-1", Qty: 1,
	})
	_, err := Issue{}.Apply(context.Background(), env.Env, req)
	assert.True(t, apperror.IsNotFound(err))
}

func TestTransfer_Validate(t *testing.T) {
	req := baseReq(entity.KindTransfer, movement.Line{
		Warehouse: "WH-A", DestWarehouse: "WH-A",
		BoxID: "BOX-1", ItemCode: "ITEM-1", Qty: 10,
	})
	err := Transfer{}.Validate(req)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	req.Lines[0].DestWarehouse = ""
	err = Transfer{}.Validate(req)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestTransfer_Apply(t *testing.T) {
	env := newTestEnv()
	env.seed("WH-A", "BOX-1", "ITEM-1", 50, 0)

	req := baseReq(entity.KindTransfer, movement.Line{
		Warehouse: "WH-A", DestWarehouse: "WH-B",
		BoxID: "BOX-1", ItemCode: "ITEM-1", Qty: 20,
		BoxType: "PALLET", PartRef: "P-77",
	})
	applied, err := Transfer{}.Apply(context.Background(), env.Env, req)
	require.NoError(t, err)
	require.Len(t, applied.Keys, 1)
	assert.Len(t, applied.Touched, 2)

	src := env.get(t, "WH-A", "BOX-1", "ITEM-1")
	dst := env.get(t, "WH-B", "BOX-1", "ITEM-1")
	assert.Equal(t, int64(30), src.GoodQty)
	assert.Equal(t, int64(20), dst.GoodQty)
	// The destination row was created by this transfer and carries the
	// line's classification defaults.
	assert.Equal(t, "PALLET", dst.BoxType)
	assert.Equal(t, "P-77", dst.PartRef)

	// Both sides share one record; total stock is conserved.
	rec, err := env.log.FindByKey(context.Background(), applied.Keys[0])
	require.NoError(t, err)
	assert.Equal(t, "WH-A", rec.SourceWarehouse)
	assert.Equal(t, "WH-B", rec.DestWarehouse)
	assert.Equal(t, int64(50), src.GoodQty+dst.GoodQty)
}

func TestRepack_OverAllocationRejectedBeforeMutation(t *testing.T) {
	env := newTestEnv()
	env.seed("WH-A", "SRC-1", "ITEM-1", 100, 0)

	req := baseReq(entity.KindRepack,
		movement.Line{BoxID: "NEW-1", ItemCode: "ITEM-1", Qty: 40},
		movement.Line{BoxID: "NEW-2", ItemCode: "ITEM-1", Qty: 40},
		movement.Line{BoxID: "NEW-3", ItemCode: "ITEM-1", Qty: 30},
	)
	req.SourceBoxID = "SRC-1"
	req.SourceWarehouse = "WH-A"

	_, err := Repack{}.Apply(context.Background(), env.Env, req)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))

	// No partial split: source untouched, no new boxes.
	assert.Equal(t, int64(100), env.get(t, "WH-A", "SRC-1", "ITEM-1").GoodQty)
	assert.Len(t, env.ledger.Dump(), 1)
}

func TestRepack_MixedItemRejected(t *testing.T) {
	env := newTestEnv()
	env.seed("WH-A", "SRC-1", "ITEM-1", 100, 0)

	// A split naming a second item would decrement ITEM-1 and mint ITEM-2
	// stock the source never held.
	req := baseReq(entity.KindRepack,
		movement.Line{BoxID: "NEW-1", ItemCode: "ITEM-1", Qty: 50},
		movement.Line{BoxID: "NEW-2", ItemCode: "ITEM-2", Qty: 50},
	)
	req.SourceBoxID = "SRC-1"
	req.SourceWarehouse = "WH-A"

	err := Repack{}.Validate(req)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "ITEM-2", appErr.Details["item_code"])
	assert.Equal(t, "ITEM-1", appErr.Details["source_item_code"])

	assert.Equal(t, int64(100), env.get(t, "WH-A", "SRC-1", "ITEM-1").GoodQty)
	assert.Len(t, env.ledger.Dump(), 1)
}

func TestRepack_Apply(t *testing.T) {
	env := newTestEnv()
	env.ledger.Seed(entity.StockRecord{
		StockKey: entity.StockKey{
			BusinessUnit: testBU, Warehouse: "WH-A", BoxID: "SRC-1", ItemCode: "ITEM-1",
		},
		GoodQty: 100,
		BoxType: "CRATE",
		PartRef: "P-42",
	})

	req := baseReq(entity.KindRepack,
		movement.Line{BoxID: "NEW-1", ItemCode: "ITEM-1", Qty: 40},
		movement.Line{BoxID: "NEW-2", ItemCode: "ITEM-1", Qty: 40},
		movement.Line{BoxID: "NEW-3", ItemCode: "ITEM-1", Qty: 20},
	)
	req.SourceBoxID = "SRC-1"
	req.SourceWarehouse = "WH-A"

	applied, err := Repack{}.Apply(context.Background(), env.Env, req)
	require.NoError(t, err)
	assert.Len(t, applied.Keys, 3)

	assert.Equal(t, int64(0), env.get(t, "WH-A", "SRC-1", "ITEM-1").GoodQty)

	for _, boxID := range []string{"NEW-1", "NEW-2", "NEW-3"} {
		rec := env.get(t, "WH-A", boxID, "ITEM-1")
		// New boxes inherit the source's classification.
		assert.Equal(t, "CRATE", rec.BoxType, boxID)
		assert.Equal(t, "P-42", rec.PartRef, boxID)
	}

	rec, err := env.log.FindByKey(context.Background(), applied.Keys[0])
	require.NoError(t, err)
	assert.Equal(t, "SRC-1", rec.SourceBoxID)
}

func TestShipmentCancel_RestoresAndRejectsSecondCancel(t *testing.T) {
	env := newTestEnv()
	env.seed("WH-FG", "BOX-1", "ITEM-1", 50, 0)
	ctx := context.Background()

	ship := baseReq(entity.KindShipment, movement.Line{
		Warehouse: "WH-FG", BoxID: "BOX-1", ItemCode: "ITEM-1", Qty: 30,
	})
	shipped, err := Shipment{}.Apply(ctx, env.Env, ship)
	require.NoError(t, err)
	require.Equal(t, int64(20), env.get(t, "WH-FG", "BOX-1", "ITEM-1").GoodQty)

	cancel := baseReq(entity.KindShipmentCancel, movement.Line{RefKey: shipped.Keys[0]})
	cancelled, err := ShipmentCancel{}.Apply(ctx, env.Env, cancel)
	require.NoError(t, err)

	assert.Equal(t, int64(50), env.get(t, "WH-FG", "BOX-1", "ITEM-1").GoodQty)

	orig, err := env.log.FindByKey(ctx, shipped.Keys[0])
	require.NoError(t, err)
	assert.True(t, orig.Reversed)

	rec, err := env.log.FindByKey(ctx, cancelled.Keys[0])
	require.NoError(t, err)
	assert.Equal(t, shipped.Keys[0], rec.RelatedKey)

	// Cancelling the same shipment twice is rejected and changes nothing.
	_, err = ShipmentCancel{}.Apply(ctx, env.Env, cancel)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeAlreadyReversed))
	assert.Equal(t, int64(50), env.get(t, "WH-FG", "BOX-1", "ITEM-1").GoodQty)
}

func TestReturn_DefectRouting(t *testing.T) {
	env := newTestEnv()
	env.catalog.PutWarehouse(catalog.Warehouse{
		Code: "WH-RET", Name: "Returns", DefectWarehouse: "WH-DEF",
	})

	req := baseReq(entity.KindReturn, movement.Line{
		Warehouse: "WH-RET", BoxID: "BOX-1", ItemCode: "ITEM-1", Qty: 5,
		DefectFlag: true,
	})
	applied, err := Return{}.Apply(context.Background(), env.Env, req)
	require.NoError(t, err)
	// RETURN record plus the implicit transfer record.
	require.Len(t, applied.Keys, 2)

	// The defect count follows the goods: nothing lingers at the return
	// warehouse, and the unit is counted defective exactly once.
	ret := env.get(t, "WH-RET", "BOX-1", "ITEM-1")
	assert.Equal(t, int64(0), ret.GoodQty)
	assert.Equal(t, int64(0), ret.DefectQty)

	def := env.get(t, "WH-DEF", "BOX-1", "ITEM-1")
	assert.Equal(t, int64(5), def.GoodQty)
	assert.Equal(t, int64(5), def.DefectQty)
	assert.Equal(t, int64(5), ret.DefectQty+def.DefectQty)

	xfer, err := env.log.FindByKey(context.Background(), applied.Keys[1])
	require.NoError(t, err)
	assert.Equal(t, entity.KindTransfer, xfer.Kind)
	assert.Equal(t, "WH-DEF", xfer.DestWarehouse)
}

func TestReturn_DefectWithoutRoutingKeepsCount(t *testing.T) {
	env := newTestEnv()
	env.catalog.PutWarehouse(catalog.Warehouse{Code: "WH-RET", Name: "Returns"})

	req := baseReq(entity.KindReturn, movement.Line{
		Warehouse: "WH-RET", BoxID: "BOX-1", ItemCode: "ITEM-1", Qty: 5,
		DefectFlag: true,
	})
	applied, err := Return{}.Apply(context.Background(), env.Env, req)
	require.NoError(t, err)
	assert.Len(t, applied.Keys, 1)

	rec := env.get(t, "WH-RET", "BOX-1", "ITEM-1")
	assert.Equal(t, int64(5), rec.GoodQty)
	assert.Equal(t, int64(5), rec.DefectQty)
}

func TestReturn_CleanReturnSkipsRouting(t *testing.T) {
	env := newTestEnv()
	env.catalog.PutWarehouse(catalog.Warehouse{
		Code: "WH-RET", Name: "Returns", DefectWarehouse: "WH-DEF",
	})

	req := baseReq(entity.KindReturn, movement.Line{
		Warehouse: "WH-RET", BoxID: "BOX-1", ItemCode: "ITEM-1", Qty: 5,
	})
	applied, err := Return{}.Apply(context.Background(), env.Env, req)
	require.NoError(t, err)
	assert.Len(t, applied.Keys, 1)
	assert.Equal(t, int64(5), env.get(t, "WH-RET", "BOX-1", "ITEM-1").GoodQty)
}

func TestProductionInput_ImplicitTransferToProcessWarehouse(t *testing.T) {
	env := newTestEnv()
	env.catalog.PutProcess(catalog.Process{
		Code: "PROC-1", Name: "Assembly", DefaultWarehouse: "WH-PROC",
	})
	env.seed("WH-A", "BOX-1", "ITEM-1", 10, 0)

	req := baseReq(entity.KindProductionInput, movement.Line{
		Warehouse: "WH-A", BoxID: "BOX-1", ItemCode: "ITEM-1", Qty: 4,
	})
	req.ProcessCode = "PROC-1"

	applied, err := ProductionInput{}.Apply(context.Background(), env.Env, req)
	require.NoError(t, err)
	// Implicit TRANSFER then PRODUCTION_INPUT.
	require.Len(t, applied.Keys, 2)

	assert.Equal(t, int64(6), env.get(t, "WH-A", "BOX-1", "ITEM-1").GoodQty)
	assert.Equal(t, int64(0), env.get(t, "WH-PROC", "BOX-1", "ITEM-1").GoodQty)

	input, err := env.log.FindByKey(context.Background(), applied.Keys[1])
	require.NoError(t, err)
	assert.Equal(t, entity.KindProductionInput, input.Kind)
	assert.Equal(t, "WH-PROC", input.SourceWarehouse)
	assert.Equal(t, "PROC-1", input.Reason)
}

func TestProductionResult_Apply(t *testing.T) {
	env := newTestEnv()
	env.catalog.PutProcess(catalog.Process{
		Code: "PROC-1", Name: "Assembly", OutputWarehouse: "WH-FG",
	})

	req := baseReq(entity.KindProductionResult, movement.Line{
		BoxID: "FG-1", ItemCode: "PROD-1", Qty: 12,
	})
	req.ProcessCode = "PROC-1"

	applied, err := ProductionResult{}.Apply(context.Background(), env.Env, req)
	require.NoError(t, err)
	require.Len(t, applied.Keys, 1)
	assert.Equal(t, int64(12), env.get(t, "WH-FG", "FG-1", "PROD-1").GoodQty)
}

func TestProductionResult_NoOutputWarehouse(t *testing.T) {
	env := newTestEnv()
	env.catalog.PutProcess(catalog.Process{Code: "PROC-2", Name: "Raw"})

	req := baseReq(entity.KindProductionResult, movement.Line{
		BoxID: "FG-1", ItemCode: "PROD-1", Qty: 1,
	})
	req.ProcessCode = "PROC-2"

	_, err := ProductionResult{}.Apply(context.Background(), env.Env, req)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestDisposal_ZeroesAndAllowsRevival(t *testing.T) {
	env := newTestEnv()
	env.seed("WH-A", "BOX-1", "ITEM-1", 7, 2)
	ctx := context.Background()

	req := baseReq(entity.KindDisposal, movement.Line{
		Warehouse: "WH-A", BoxID: "BOX-1", ItemCode: "ITEM-1",
	})
	req.Reason = "WATER_DAMAGE"

	applied, err := Disposal{}.Apply(ctx, env.Env, req)
	require.NoError(t, err)

	rec := env.get(t, "WH-A", "BOX-1", "ITEM-1")
	assert.True(t, rec.Disposed)
	assert.Equal(t, int64(0), rec.GoodQty)
	assert.Equal(t, int64(0), rec.DefectQty)

	logRec, err := env.log.FindByKey(ctx, applied.Keys[0])
	require.NoError(t, err)
	assert.Equal(t, int64(7), logRec.Qty)
	assert.Equal(t, "WATER_DAMAGE", logRec.Reason)

	// A later receive on the disposed box revives the row from zero.
	recv := baseReq(entity.KindReceive, movement.Line{
		Warehouse: "WH-A", BoxID: "BOX-1", ItemCode: "ITEM-1", Qty: 3,
	})
	_, err = Receive{}.Apply(ctx, env.Env, recv)
	require.NoError(t, err)

	rec = env.get(t, "WH-A", "BOX-1", "ITEM-1")
	assert.False(t, rec.Disposed)
	assert.Equal(t, int64(3), rec.GoodQty)
}

func TestDisposal_RequiresReason(t *testing.T) {
	req := baseReq(entity.KindDisposal, movement.Line{
		Warehouse: "WH-A", BoxID: "BOX-1", ItemCode: "ITEM-1",
	})
	err := Disposal{}.Validate(req)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()

	for _, kind := range []entity.MovementKind{
		entity.KindIssue, entity.KindReceive, entity.KindTransfer,
		entity.KindDisposal, entity.KindRepack, entity.KindReturn,
		entity.KindShipment, entity.KindShipmentCancel, entity.KindReturnCancel,
		entity.KindProductionInput, entity.KindProductionResult,
	} {
		p, err := r.Resolve(kind)
		require.NoError(t, err, kind)
		assert.Equal(t, kind, p.Kind())
	}

	_, err := r.Resolve("TELEPORT")
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}
