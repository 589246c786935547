// Package ledger_repo provides the PostgreSQL implementation of the stock
// ledger. Every mutation is a single atomic statement: the conditional
// decrement, the upsert increment and the zeroing update never read first and
// write second.
package ledger_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"boxledger/internal/core/apperror"
	"boxledger/internal/core/entity"
	"boxledger/internal/domain/ledger"
	"boxledger/internal/infrastructure/storage/postgres"
)

const stockTable = "stock_records"

var stockColumns = []string{
	"business_unit", "warehouse_code", "box_id", "item_code",
	"good_qty", "defect_qty", "box_type", "part_ref", "disposed",
	"created_at", "updated_at",
}

// StockRepo implements ledger.Ledger on PostgreSQL.
type StockRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewStockRepo creates a new stock ledger repository.
func NewStockRepo(txManager *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// keyEq builds the WHERE clause matching one ledger row.
func keyEq(key entity.StockKey) squirrel.Eq {
	return squirrel.Eq{
		"business_unit":  key.BusinessUnit,
		"warehouse_code": key.Warehouse,
		"box_id":         key.BoxID,
		"item_code":      key.ItemCode,
	}
}

// Get returns the current record, or NotFound.
func (r *StockRepo) Get(ctx context.Context, key entity.StockKey) (entity.StockRecord, error) {
	var rec entity.StockRecord

	q := r.builder.Select(stockColumns...).
		From(stockTable).
		Where(keyEq(key)).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return rec, fmt.Errorf("build query: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &rec, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return rec, apperror.NewNotFound("stock record", key)
		}
		return rec, wrap("get stock record", err)
	}
	return rec, nil
}

// ListByWarehouse returns the non-empty records of one warehouse.
func (r *StockRepo) ListByWarehouse(ctx context.Context, businessUnit, warehouse string) ([]entity.StockRecord, error) {
	q := r.builder.Select(stockColumns...).
		From(stockTable).
		Where(squirrel.Eq{
			"business_unit":  businessUnit,
			"warehouse_code": warehouse,
		}).
		Where(squirrel.Or{
			squirrel.NotEq{"good_qty": int64(0)},
			squirrel.NotEq{"defect_qty": int64(0)},
		}).
		OrderBy("box_id", "item_code")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var records []entity.StockRecord
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &records, sql, args...); err != nil {
		return nil, wrap("select stock records", err)
	}
	return records, nil
}

// TryDecrement decrements goodQty only when the row holds enough. The
// WHERE good_qty >= qty guard makes the check-and-take one statement; zero
// rows affected means either no row or not enough, disambiguated by a
// follow-up read inside the same transaction.
func (r *StockRepo) TryDecrement(ctx context.Context, key entity.StockKey, qty int64) error {
	q := r.builder.Update(stockTable).
		Set("good_qty", squirrel.Expr("good_qty - ?", qty)).
		Set("updated_at", time.Now().UTC()).
		Where(keyEq(key)).
		Where(squirrel.GtOrEq{"good_qty": qty})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return wrap("decrement stock", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	rec, err := r.Get(ctx, key)
	if err != nil {
		return err
	}
	return apperror.NewInsufficientStock(key.BoxID, qty, rec.GoodQty)
}

// UpsertIncrement adds quantities, creating the row on first contact. The
// ON CONFLICT arithmetic runs inside the database, so two concurrent
// increments both land. Incrementing a disposed row revives it.
func (r *StockRepo) UpsertIncrement(ctx context.Context, key entity.StockKey, qty, defectDelta int64, defaults entity.CreationDefaults) error {
	now := time.Now().UTC()

	q := r.builder.Insert(stockTable).
		Columns(stockColumns...).
		Values(
			key.BusinessUnit, key.Warehouse, key.BoxID, key.ItemCode,
			qty, defectDelta, defaults.BoxType, defaults.PartRef, false,
			now, now,
		).
		Suffix(`ON CONFLICT (business_unit, warehouse_code, box_id, item_code) DO UPDATE SET
			good_qty = ` + stockTable + `.good_qty + EXCLUDED.good_qty,
			defect_qty = ` + stockTable + `.defect_qty + EXCLUDED.defect_qty,
			disposed = FALSE,
			updated_at = EXCLUDED.updated_at`)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return wrap("upsert stock", err)
	}
	return nil
}

// zeroSQL locks the row, zeroes it and hands back the quantities it held,
// all in one statement. RETURNING alone would yield the new (zero) values;
// the locked self-join preserves the prior ones.
const zeroSQL = `
	UPDATE ` + stockTable + ` s
	SET good_qty = 0, defect_qty = 0, disposed = TRUE, updated_at = $5
	FROM (
		SELECT business_unit, warehouse_code, box_id, item_code, good_qty, defect_qty
		FROM ` + stockTable + `
		WHERE business_unit = $1 AND warehouse_code = $2 AND box_id = $3 AND item_code = $4
		FOR UPDATE
	) prior
	WHERE s.business_unit = prior.business_unit
	  AND s.warehouse_code = prior.warehouse_code
	  AND s.box_id = prior.box_id
	  AND s.item_code = prior.item_code
	RETURNING prior.good_qty, prior.defect_qty
`

// Zero empties the row and marks it disposed, returning the quantities it
// held. The row stays for traceability; zeroing an already-zero row is a
// no-op success.
func (r *StockRepo) Zero(ctx context.Context, key entity.StockKey) (int64, int64, error) {
	querier := r.txManager.GetQuerier(ctx)

	var good, defect int64
	err := querier.QueryRow(ctx, zeroSQL,
		key.BusinessUnit, key.Warehouse, key.BoxID, key.ItemCode, time.Now().UTC(),
	).Scan(&good, &defect)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, apperror.NewNotFound("stock record", key)
		}
		return 0, 0, wrap("zero stock", err)
	}
	return good, defect, nil
}

func wrap(op string, err error) error {
	return postgres.WrapStorageErr(fmt.Errorf("%s: %w", op, err))
}

// Ensure interface compliance.
var _ ledger.Ledger = (*StockRepo)(nil)
