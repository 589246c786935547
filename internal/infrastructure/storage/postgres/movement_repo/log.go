// Package movement_repo provides the PostgreSQL implementation of the
// append-only movement log.
package movement_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"boxledger/internal/core/apperror"
	"boxledger/internal/core/entity"
	"boxledger/internal/domain/movement"
	"boxledger/internal/infrastructure/storage/postgres"
)

const movementTable = "movement_log"

// sqlstateUniqueViolation rejects a duplicate sequence key at insert.
const sqlstateUniqueViolation = "23505"

var movementColumns = []string{
	"sequence_key", "kind", "business_unit", "box_id", "item_code", "qty",
	"source_warehouse", "dest_warehouse", "related_key", "source_box_id",
	"reason", "actor", "work_date", "reversed", "created_at",
}

// LogRepo implements movement.Log on PostgreSQL.
type LogRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewLogRepo creates a new movement log repository.
func NewLogRepo(txManager *postgres.TxManager) *LogRepo {
	return &LogRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Append writes one record. A duplicate sequence key is rejected.
func (r *LogRepo) Append(ctx context.Context, rec entity.MovementRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	q := r.builder.Insert(movementTable).
		Columns(movementColumns...).
		Values(
			rec.SequenceKey, rec.Kind, rec.BusinessUnit, rec.BoxID, rec.ItemCode, rec.Qty,
			rec.SourceWarehouse, rec.DestWarehouse, rec.RelatedKey, rec.SourceBoxID,
			rec.Reason, rec.Actor, rec.WorkDate, rec.Reversed, rec.CreatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == sqlstateUniqueViolation {
			return apperror.NewDuplicate("movement record", "sequence_key", rec.SequenceKey)
		}
		return postgres.WrapStorageErr(fmt.Errorf("insert movement: %w", err))
	}
	return nil
}

// FindByKey returns the record with the given sequence key, or NotFound.
func (r *LogRepo) FindByKey(ctx context.Context, sequenceKey string) (entity.MovementRecord, error) {
	var rec entity.MovementRecord

	q := r.builder.Select(movementColumns...).
		From(movementTable).
		Where(squirrel.Eq{"sequence_key": sequenceKey}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return rec, fmt.Errorf("build query: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &rec, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return rec, apperror.NewNotFound("movement record", sequenceKey)
		}
		return rec, postgres.WrapStorageErr(fmt.Errorf("get movement: %w", err))
	}
	return rec, nil
}

// FindReversalTarget loads the record a cancellation reverses. Kind mismatch
// reads as NotFound: a RETURN_CANCEL never sees shipment records.
func (r *LogRepo) FindReversalTarget(ctx context.Context, kind entity.MovementKind, sequenceKey string) (entity.MovementRecord, error) {
	rec, err := r.FindByKey(ctx, sequenceKey)
	if err != nil {
		return rec, err
	}
	if rec.Kind != kind {
		return entity.MovementRecord{}, apperror.NewNotFound("movement record", sequenceKey).
			WithDetail("expected_kind", string(kind)).
			WithDetail("actual_kind", string(rec.Kind))
	}
	if rec.Reversed {
		return entity.MovementRecord{}, apperror.NewAlreadyReversed(sequenceKey)
	}
	return rec, nil
}

// MarkReversed flags a record as reversed. The reversed = FALSE guard makes
// concurrent double-cancellation lose cleanly: the second caller sees zero
// rows and gets AlreadyReversed.
func (r *LogRepo) MarkReversed(ctx context.Context, sequenceKey string) error {
	q := r.builder.Update(movementTable).
		Set("reversed", true).
		Where(squirrel.Eq{"sequence_key": sequenceKey, "reversed": false})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.WrapStorageErr(fmt.Errorf("mark reversed: %w", err))
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	if _, err := r.FindByKey(ctx, sequenceKey); err != nil {
		return err
	}
	return apperror.NewAlreadyReversed(sequenceKey)
}

// ListByWorkDate returns the records of one work date in sequence order.
func (r *LogRepo) ListByWorkDate(ctx context.Context, businessUnit, workDate string) ([]entity.MovementRecord, error) {
	q := r.builder.Select(movementColumns...).
		From(movementTable).
		Where(squirrel.Eq{
			"business_unit": businessUnit,
			"work_date":     workDate,
		}).
		OrderBy("sequence_key")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var records []entity.MovementRecord
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &records, sql, args...); err != nil {
		return nil, postgres.WrapStorageErr(fmt.Errorf("select movements: %w", err))
	}
	return records, nil
}

// ListByBox returns a box's movement history, newest first.
func (r *LogRepo) ListByBox(ctx context.Context, businessUnit, boxID string, limit int) ([]entity.MovementRecord, error) {
	q := r.builder.Select(movementColumns...).
		From(movementTable).
		Where(squirrel.Eq{
			"business_unit": businessUnit,
			"box_id":        boxID,
		}).
		OrderBy("sequence_key DESC")

	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var records []entity.MovementRecord
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &records, sql, args...); err != nil {
		return nil, postgres.WrapStorageErr(fmt.Errorf("select movements: %w", err))
	}
	return records, nil
}

// Ensure interface compliance.
var _ movement.Log = (*LogRepo)(nil)
