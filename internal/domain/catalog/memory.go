package catalog

import (
	"context"
	"sync"

	"boxledger/internal/core/apperror"
)

// Memory is an in-process Lookup used by tests and seed tooling.
type Memory struct {
	mu         sync.RWMutex
	warehouses map[string]Warehouse
	processes  map[string]Process
}

// NewMemory creates an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{
		warehouses: make(map[string]Warehouse),
		processes:  make(map[string]Process),
	}
}

// PutWarehouse registers a warehouse.
func (m *Memory) PutWarehouse(w Warehouse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warehouses[w.Code] = w
}

// PutProcess registers a process.
func (m *Memory) PutProcess(p Process) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processes[p.Code] = p
}

// GetWarehouse implements Lookup.
func (m *Memory) GetWarehouse(ctx context.Context, code string) (Warehouse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if w, ok := m.warehouses[code]; ok {
		return w, nil
	}
	return Warehouse{}, apperror.NewNotFound("warehouse", code)
}

// GetProcess implements Lookup.
func (m *Memory) GetProcess(ctx context.Context, code string) (Process, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.processes[code]; ok {
		return p, nil
	}
	return Process{}, apperror.NewNotFound("process", code)
}

var _ Lookup = (*Memory)(nil)
