// Package sequence_repo provides the PostgreSQL sequence key generator.
//
// The counter is allocated against the pool, never inside a business
// transaction: a rolled-back movement leaves a gap in the daily ordinals,
// which is fine — uniqueness is the invariant, density is not. Running the
// increment inside the business transaction would serialize all movements of
// a work date behind one row lock.
package sequence_repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"boxledger/internal/core/apperror"
	"boxledger/internal/domain/sequence"
	"boxledger/internal/infrastructure/storage/postgres"
)

// Querier is the minimal query surface the counter needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CounterRepo implements sequence.Generator using a counter table with an
// atomic upsert-increment.
type CounterRepo struct {
	querier Querier
}

// NewCounterRepo creates a generator bound to the given pool.
func NewCounterRepo(pool *pgxpool.Pool) *CounterRepo {
	return &CounterRepo{querier: pool}
}

// NewCounterRepoFromQuerier creates a generator over any querier.
func NewCounterRepoFromQuerier(q Querier) *CounterRepo {
	return &CounterRepo{querier: q}
}

// Next allocates the next ordinal for (namespace, workDate) and renders the
// sequence key. The INSERT ... ON CONFLICT ... RETURNING round-trip is one
// atomic statement; concurrent callers always receive distinct ordinals.
func (r *CounterRepo) Next(ctx context.Context, namespace, workDate string) (string, error) {
	if namespace == "" {
		return "", apperror.NewValidation("sequence namespace is required")
	}
	if !sequence.ValidWorkDate(workDate) {
		return "", apperror.NewValidation("work date must be YYYYMMDD")
	}

	var ordinal int64
	err := r.querier.QueryRow(ctx, `
		INSERT INTO sequence_counters (namespace, work_date, current_val)
		VALUES ($1, $2, 1)
		ON CONFLICT (namespace, work_date) DO UPDATE SET current_val = sequence_counters.current_val + 1
		RETURNING current_val
	`, namespace, workDate).Scan(&ordinal)
	if err != nil {
		return "", postgres.WrapStorageErr(fmt.Errorf("next sequence: %w", err))
	}

	return sequence.FormatKey(workDate, ordinal), nil
}

// Ensure interface compliance.
var _ sequence.Generator = (*CounterRepo)(nil)
