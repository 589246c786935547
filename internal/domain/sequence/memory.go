package sequence

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Generator for tests and single-node tooling.
// The postgres implementation is the production one.
type Memory struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewMemory creates an empty in-memory generator.
func NewMemory() *Memory {
	return &Memory{counters: make(map[string]int64)}
}

// Next implements Generator.
func (m *Memory) Next(ctx context.Context, namespace, workDate string) (string, error) {
	if err := validate(namespace, workDate); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprintf("%s:%s", namespace, workDate)
	m.counters[key]++
	return FormatKey(workDate, m.counters[key]), nil
}

var _ Generator = (*Memory)(nil)
