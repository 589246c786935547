package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boxledger/internal/core/apperror"
	"boxledger/internal/core/entity"
	"boxledger/internal/domain/catalog"
	"boxledger/internal/domain/ledger"
	"boxledger/internal/domain/movement"
	"boxledger/internal/domain/policy"
	"boxledger/internal/domain/sequence"
)

const (
	testBU       = "PLANT-01"
	testWorkDate = "20260115"
)

// fakeTxManager snapshots the in-memory stores and restores them when the
// transactional function fails, mimicking a rollback.
type fakeTxManager struct {
	ledger *ledger.Memory
	log    *movement.MemoryLog
	calls  int
}

func (f *fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	stockSnap := f.ledger.Dump()
	logSnap := f.log.Dump()
	if err := fn(ctx); err != nil {
		f.ledger.Load(stockSnap)
		f.log.Load(logSnap)
		return err
	}
	return nil
}

// flakyLedger fails the first failures decrements with a retryable storage
// error, then delegates.
type flakyLedger struct {
	ledger.Ledger
	mu       sync.Mutex
	failures int
	attempts int
}

func (f *flakyLedger) TryDecrement(ctx context.Context, key entity.StockKey, qty int64) error {
	f.mu.Lock()
	f.attempts++
	fail := f.attempts <= f.failures
	f.mu.Unlock()
	if fail {
		return apperror.NewRetryableStorage(errors.New("connection reset by peer"))
	}
	return f.Ledger.TryDecrement(ctx, key, qty)
}

type fakeIdempotency struct {
	mu        sync.Mutex
	hashes    map[string]string
	results   map[string]*movement.Result
	failCalls int
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{
		hashes:  make(map[string]string),
		results: make(map[string]*movement.Result),
	}
}

func (f *fakeIdempotency) Acquire(ctx context.Context, key, requestHash string) (*movement.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.hashes[key]; ok {
		if h != requestHash {
			return nil, apperror.NewIdempotencyMismatch(key)
		}
		if r, ok := f.results[key]; ok {
			cp := *r
			return &cp, nil
		}
		return nil, apperror.NewIdempotencyConflict(key)
	}
	f.hashes[key] = requestHash
	return nil, nil
}

func (f *fakeIdempotency) Complete(ctx context.Context, key string, result *movement.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *result
	f.results[key] = &cp
	return nil
}

func (f *fakeIdempotency) Fail(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCalls++
	delete(f.hashes, key)
	return nil
}

type fixture struct {
	orch        *Orchestrator
	ledger      *ledger.Memory
	log         *movement.MemoryLog
	catalog     *catalog.Memory
	tx          *fakeTxManager
	idempotency *fakeIdempotency
}

func newFixture(t *testing.T, mutate func(*Deps)) *fixture {
	t.Helper()

	led := ledger.NewMemory()
	log := movement.NewMemoryLog()
	cat := catalog.NewMemory()
	for _, code := range []string{"WH-A", "WH-B", "WH-FG"} {
		cat.PutWarehouse(catalog.Warehouse{Code: code, Name: code})
	}
	txm := &fakeTxManager{ledger: led, log: log}
	idem := newFakeIdempotency()

	deps := Deps{
		Registry:    policy.NewRegistry(),
		Ledger:      led,
		Log:         log,
		Sequence:    sequence.NewMemory(),
		Catalog:     cat,
		TxManager:   txm,
		Idempotency: idem,
	}
	if mutate != nil {
		mutate(&deps)
	}

	orch := New(Config{
		MaxAttempts:  3,
		RetryBackoff: time.Millisecond,
		ExecTimeout:  time.Second,
	}, deps)

	return &fixture{
		orch:        orch,
		ledger:      led,
		log:         log,
		catalog:     cat,
		tx:          txm,
		idempotency: idem,
	}
}

func (f *fixture) seed(warehouse, boxID, itemCode string, qty int64) {
	f.ledger.Seed(entity.StockRecord{
		StockKey: entity.StockKey{
			BusinessUnit: testBU,
			Warehouse:    warehouse,
			BoxID:        boxID,
			ItemCode:     itemCode,
		},
		GoodQty: qty,
	})
}

func issueReq(qty int64) *movement.Request {
	return &movement.Request{
		Kind:         entity.KindIssue,
		BusinessUnit: testBU,
		WorkDate:     testWorkDate,
		Actor:        "OP-100",
		Lines: []movement.Line{
			{Warehouse: "WH-A", BoxID: "BOX-1", ItemCode: "ITEM-1", Qty: qty},
		},
	}
}

func TestSubmit_Commit(t *testing.T) {
	f := newFixture(t, nil)
	f.seed("WH-A", "BOX-1", "ITEM-1", 50)

	result, err := f.orch.Submit(context.Background(), issueReq(20))
	require.NoError(t, err)
	require.Len(t, result.CommittedKeys, 1)
	require.Len(t, result.Affected, 1)
	assert.Equal(t, int64(30), result.Affected[0].GoodQty)
	assert.False(t, result.Replayed)
	assert.Equal(t, 1, f.tx.calls)
}

func TestSubmit_ValidationNeverTouchesStorage(t *testing.T) {
	f := newFixture(t, nil)
	f.seed("WH-A", "BOX-1", "ITEM-1", 50)

	req := issueReq(20)
	req.BusinessUnit = ""

	_, err := f.orch.Submit(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
	assert.Equal(t, 0, f.tx.calls)
}

func TestSubmit_UnknownKind(t *testing.T) {
	f := newFixture(t, nil)

	req := issueReq(1)
	req.Kind = "TELEPORT"

	_, err := f.orch.Submit(context.Background(), req)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestSubmit_DuplicateBoxInBatch(t *testing.T) {
	f := newFixture(t, nil)
	f.seed("WH-A", "BOX-1", "ITEM-1", 50)

	req := issueReq(5)
	req.Lines = append(req.Lines, movement.Line{
		Warehouse: "WH-A", BoxID: "BOX-1", ItemCode: "ITEM-1", Qty: 10,
	})

	_, err := f.orch.Submit(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
	assert.Equal(t, 0, f.tx.calls)
}

func TestSubmit_UnknownWarehouse(t *testing.T) {
	f := newFixture(t, nil)

	req := issueReq(5)
	req.Lines[0].Warehouse = "WH-NOWHERE"

	_, err := f.orch.Submit(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "WH-NOWHERE", appErr.Details["warehouse"])
}

func TestSubmit_RetriesTransientFailures(t *testing.T) {
	flaky := &flakyLedger{failures: 2}
	f := newFixture(t, func(d *Deps) {
		flaky.Ledger = d.Ledger
		d.Ledger = flaky
	})
	f.seed("WH-A", "BOX-1", "ITEM-1", 50)

	result, err := f.orch.Submit(context.Background(), issueReq(20))
	require.NoError(t, err)
	assert.Len(t, result.CommittedKeys, 1)
	assert.Equal(t, 3, f.tx.calls)
}

func TestSubmit_RetryExhaustion(t *testing.T) {
	flaky := &flakyLedger{failures: 100}
	f := newFixture(t, func(d *Deps) {
		flaky.Ledger = d.Ledger
		d.Ledger = flaky
	})
	f.seed("WH-A", "BOX-1", "ITEM-1", 50)

	_, err := f.orch.Submit(context.Background(), issueReq(20))
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeStorageUnavailable))
	assert.Equal(t, 3, f.tx.calls)

	rec, err := f.ledger.Get(context.Background(), entity.StockKey{
		BusinessUnit: testBU, Warehouse: "WH-A", BoxID: "BOX-1", ItemCode: "ITEM-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(50), rec.GoodQty)
}

func TestSubmit_BusinessRejectionNotRetried(t *testing.T) {
	f := newFixture(t, nil)
	f.seed("WH-A", "BOX-1", "ITEM-1", 10)

	_, err := f.orch.Submit(context.Background(), issueReq(20))
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))
	assert.Equal(t, 1, f.tx.calls)

	// Rollback left the row exactly as seeded.
	rec, err := f.ledger.Get(context.Background(), entity.StockKey{
		BusinessUnit: testBU, Warehouse: "WH-A", BoxID: "BOX-1", ItemCode: "ITEM-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), rec.GoodQty)
	assert.Empty(t, f.log.Dump())
}

func TestSubmit_IdempotentReplay(t *testing.T) {
	f := newFixture(t, nil)
	f.seed("WH-A", "BOX-1", "ITEM-1", 50)

	req := issueReq(20)
	req.IdempotencyKey = "PDA-7:scan-123"

	first, err := f.orch.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := f.orch.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.CommittedKeys, second.CommittedKeys)

	// The duplicate never re-executed.
	assert.Equal(t, 1, f.tx.calls)
	rec, err := f.ledger.Get(context.Background(), entity.StockKey{
		BusinessUnit: testBU, Warehouse: "WH-A", BoxID: "BOX-1", ItemCode: "ITEM-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(30), rec.GoodQty)
}

func TestSubmit_IdempotencyKeyReuseRejected(t *testing.T) {
	f := newFixture(t, nil)
	f.seed("WH-A", "BOX-1", "ITEM-1", 50)

	req := issueReq(20)
	req.IdempotencyKey = "PDA-7:scan-123"
	_, err := f.orch.Submit(context.Background(), req)
	require.NoError(t, err)

	other := issueReq(5)
	other.IdempotencyKey = "PDA-7:scan-123"
	_, err = f.orch.Submit(context.Background(), other)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeIdempotency))
}

func TestSubmit_FailureReleasesIdempotencyKey(t *testing.T) {
	f := newFixture(t, nil)
	f.seed("WH-A", "BOX-1", "ITEM-1", 10)

	req := issueReq(20)
	req.IdempotencyKey = "PDA-7:scan-456"

	_, err := f.orch.Submit(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, 1, f.idempotency.failCalls)

	// The operator fixes the quantity and resubmits under the same key.
	fixed := issueReq(10)
	fixed.IdempotencyKey = "PDA-7:scan-456"
	result, err := f.orch.Submit(context.Background(), fixed)
	require.NoError(t, err)
	assert.Len(t, result.CommittedKeys, 1)
}

func TestSubmit_ReturnCancelEndToEnd(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	ret := &movement.Request{
		Kind:         entity.KindReturn,
		BusinessUnit: testBU,
		WorkDate:     testWorkDate,
		Actor:        "OP-100",
		Lines: []movement.Line{
			{Warehouse: "WH-B", BoxID: "BOX-9", ItemCode: "ITEM-1", Qty: 8},
		},
	}
	result, err := f.orch.Submit(ctx, ret)
	require.NoError(t, err)
	require.Len(t, result.CommittedKeys, 1)

	cancel := &movement.Request{
		Kind:         entity.KindReturnCancel,
		BusinessUnit: testBU,
		WorkDate:     testWorkDate,
		Actor:        "OP-100",
		Lines:        []movement.Line{{RefKey: result.CommittedKeys[0]}},
	}
	cancelResult, err := f.orch.Submit(ctx, cancel)
	require.NoError(t, err)
	require.Len(t, cancelResult.Affected, 1)
	assert.Equal(t, int64(0), cancelResult.Affected[0].GoodQty)
}
