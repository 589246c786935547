package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"boxledger/internal/core/apperror"
	"boxledger/internal/core/entity"
)

// Memory is an in-process Ledger used by tests. It honors the same atomic
// semantics as the postgres implementation under a single mutex.
type Memory struct {
	mu      sync.Mutex
	records map[entity.StockKey]*entity.StockRecord
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{records: make(map[entity.StockKey]*entity.StockRecord)}
}

// Seed inserts a record directly, bypassing movement discipline. Tests only.
func (m *Memory) Seed(rec entity.StockRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := rec
	m.records[rec.StockKey] = &r
}

// Dump returns a copy of all records, ordered by box id. Tests only.
func (m *Memory) Dump() []entity.StockRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entity.StockRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BoxID < out[j].BoxID })
	return out
}

// Load replaces all records. Used by the test transaction manager to restore
// a snapshot on rollback.
func (m *Memory) Load(records []entity.StockRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[entity.StockKey]*entity.StockRecord, len(records))
	for _, rec := range records {
		r := rec
		m.records[rec.StockKey] = &r
	}
}

// Get implements Ledger.
func (m *Memory) Get(ctx context.Context, key entity.StockKey) (entity.StockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[key]; ok {
		return *r, nil
	}
	return entity.StockRecord{}, apperror.NewNotFound("stock record", key)
}

// ListByWarehouse implements Ledger.
func (m *Memory) ListByWarehouse(ctx context.Context, businessUnit, warehouse string) ([]entity.StockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.StockRecord
	for _, r := range m.records {
		if r.BusinessUnit == businessUnit && r.Warehouse == warehouse && !r.IsEmpty() {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BoxID < out[j].BoxID })
	return out, nil
}

// TryDecrement implements Ledger.
func (m *Memory) TryDecrement(ctx context.Context, key entity.StockKey, qty int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[key]
	if !ok {
		return apperror.NewNotFound("stock record", key)
	}
	if r.GoodQty < qty {
		return apperror.NewInsufficientStock(key.BoxID, qty, r.GoodQty)
	}
	r.GoodQty -= qty
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// UpsertIncrement implements Ledger.
func (m *Memory) UpsertIncrement(ctx context.Context, key entity.StockKey, qty, defectDelta int64, defaults entity.CreationDefaults) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if r, ok := m.records[key]; ok {
		r.GoodQty += qty
		r.DefectQty += defectDelta
		r.Disposed = false
		r.UpdatedAt = now
		return nil
	}
	m.records[key] = &entity.StockRecord{
		StockKey:  key,
		GoodQty:   qty,
		DefectQty: defectDelta,
		BoxType:   defaults.BoxType,
		PartRef:   defaults.PartRef,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

// Zero implements Ledger.
func (m *Memory) Zero(ctx context.Context, key entity.StockKey) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[key]
	if !ok {
		return 0, 0, apperror.NewNotFound("stock record", key)
	}
	good, defect := r.GoodQty, r.DefectQty
	r.GoodQty = 0
	r.DefectQty = 0
	r.Disposed = true
	r.UpdatedAt = time.Now().UTC()
	return good, defect, nil
}

var _ Ledger = (*Memory)(nil)
