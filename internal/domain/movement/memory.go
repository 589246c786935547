package movement

import (
	"context"
	"sort"
	"sync"

	"boxledger/internal/core/apperror"
	"boxledger/internal/core/entity"
)

// MemoryLog is an in-process Log used by tests.
type MemoryLog struct {
	mu      sync.Mutex
	records map[string]*entity.MovementRecord
}

// NewMemoryLog creates an empty in-memory movement log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{records: make(map[string]*entity.MovementRecord)}
}

// Dump returns a copy of all records ordered by sequence key. Tests only.
func (l *MemoryLog) Dump() []entity.MovementRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]entity.MovementRecord, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceKey < out[j].SequenceKey })
	return out
}

// Load replaces all records. Used by the test transaction manager to restore
// a snapshot on rollback.
func (l *MemoryLog) Load(records []entity.MovementRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = make(map[string]*entity.MovementRecord, len(records))
	for _, rec := range records {
		r := rec
		l.records[rec.SequenceKey] = &r
	}
}

// Append implements Log.
func (l *MemoryLog) Append(ctx context.Context, rec entity.MovementRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.records[rec.SequenceKey]; exists {
		return apperror.NewDuplicate("movement record", "sequence_key", rec.SequenceKey)
	}
	r := rec
	l.records[rec.SequenceKey] = &r
	return nil
}

// FindByKey implements Log.
func (l *MemoryLog) FindByKey(ctx context.Context, sequenceKey string) (entity.MovementRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.records[sequenceKey]; ok {
		return *r, nil
	}
	return entity.MovementRecord{}, apperror.NewNotFound("movement record", sequenceKey)
}

// FindReversalTarget implements Log.
func (l *MemoryLog) FindReversalTarget(ctx context.Context, kind entity.MovementKind, sequenceKey string) (entity.MovementRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[sequenceKey]
	if !ok || r.Kind != kind {
		return entity.MovementRecord{}, apperror.NewNotFound("movement record", sequenceKey)
	}
	if r.Reversed {
		return entity.MovementRecord{}, apperror.NewAlreadyReversed(sequenceKey)
	}
	return *r, nil
}

// MarkReversed implements Log.
func (l *MemoryLog) MarkReversed(ctx context.Context, sequenceKey string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[sequenceKey]
	if !ok {
		return apperror.NewNotFound("movement record", sequenceKey)
	}
	r.Reversed = true
	return nil
}

var _ Log = (*MemoryLog)(nil)
