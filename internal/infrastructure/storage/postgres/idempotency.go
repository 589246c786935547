package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"boxledger/internal/core/apperror"
	"boxledger/internal/domain/movement"
)

// IdempotencyStatus represents the state of an idempotent operation.
type IdempotencyStatus string

const (
	IdempotencyStatusPending IdempotencyStatus = "pending"
	IdempotencyStatusSuccess IdempotencyStatus = "success"
)

// staleAfter is how long a pending key stays claimed before a retry may
// reclaim it (covers crashed requests that never released the key).
const staleAfter = time.Minute

// idempotencyRecord is one row of the dedup table.
type idempotencyRecord struct {
	Key         string            `db:"idempotency_key"`
	RequestHash string            `db:"request_hash"`
	Status      IdempotencyStatus `db:"status"`
	Result      []byte            `db:"result"`
	CreatedAt   time.Time         `db:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at"`
	ExpiresAt   time.Time         `db:"expires_at"`
}

// IdempotencyStore deduplicates movement submissions in PostgreSQL. Keys are
// claimed before any sequence allocation, so a duplicate request never burns
// ordinals or appends records.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
}

// NewIdempotencyStore creates a new idempotency store.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{txManager: txManager, ttl: ttl}
}

// Acquire claims the key for this request.
// Returns:
//   - (nil, nil) if the key was newly claimed
//   - (storedResult, nil) if the same request already completed (replay)
//   - (nil, error) on hash mismatch or an actively processing duplicate
func (s *IdempotencyStore) Acquire(ctx context.Context, key, requestHash string) (*movement.Result, error) {
	now := time.Now().UTC()
	querier := s.txManager.GetQuerier(ctx)

	tag, err := querier.Exec(ctx, `
		INSERT INTO movement_idempotency (idempotency_key, request_hash, status, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $4, $5)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, key, requestHash, IdempotencyStatusPending, now, now.Add(s.ttl))
	if err != nil {
		return nil, WrapStorageErr(fmt.Errorf("acquire idempotency key: %w", err))
	}
	if tag.RowsAffected() > 0 {
		return nil, nil
	}

	// Key exists: load it and decide.
	var rec idempotencyRecord
	err = querier.QueryRow(ctx, `
		SELECT idempotency_key, request_hash, status, result, created_at, updated_at, expires_at
		FROM movement_idempotency
		WHERE idempotency_key = $1
	`, key).Scan(
		&rec.Key, &rec.RequestHash, &rec.Status, &rec.Result,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.ExpiresAt,
	)
	if err != nil {
		return nil, WrapStorageErr(fmt.Errorf("load idempotency key: %w", err))
	}

	// Protect against key reuse for a different request.
	if rec.RequestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key)
	}

	switch rec.Status {
	case IdempotencyStatusSuccess:
		var result movement.Result
		if err := json.Unmarshal(rec.Result, &result); err != nil {
			return nil, fmt.Errorf("unmarshal stored result: %w", err)
		}
		return &result, nil

	case IdempotencyStatusPending:
		if time.Since(rec.UpdatedAt) <= staleAfter {
			// Key is actively being processed.
			return nil, apperror.NewIdempotencyConflict(key)
		}
		// Reclaim stale key (likely a crashed request).
		tag, err := querier.Exec(ctx, `
			UPDATE movement_idempotency
			SET updated_at = $1, expires_at = $2
			WHERE idempotency_key = $3 AND status = $4 AND updated_at < $5
		`, now, now.Add(s.ttl), key, IdempotencyStatusPending, now.Add(-staleAfter))
		if err != nil {
			return nil, WrapStorageErr(fmt.Errorf("reclaim stale key: %w", err))
		}
		if tag.RowsAffected() == 0 {
			// Lost the reclaim race.
			return nil, apperror.NewIdempotencyConflict(key)
		}
		return nil, nil
	}

	return nil, apperror.NewIdempotencyConflict(key)
}

// Complete stores the committed result under the key.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, result *movement.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	_, err = s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE movement_idempotency
		SET status = $1, result = $2, updated_at = $3
		WHERE idempotency_key = $4
	`, IdempotencyStatusSuccess, payload, time.Now().UTC(), key)
	if err != nil {
		return WrapStorageErr(fmt.Errorf("complete idempotency key: %w", err))
	}
	return nil
}

// Fail releases the key so the caller may retry after fixing the request.
// Completed keys are never released.
func (s *IdempotencyStore) Fail(ctx context.Context, key string) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM movement_idempotency
		WHERE idempotency_key = $1 AND status = $2
	`, key, IdempotencyStatusPending)
	if err != nil {
		return WrapStorageErr(fmt.Errorf("release idempotency key: %w", err))
	}
	return nil
}

// CleanupExpired removes expired idempotency records.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM movement_idempotency WHERE expires_at < $1
	`, time.Now().UTC())
	if err != nil {
		return 0, WrapStorageErr(err)
	}
	return result.RowsAffected(), nil
}
