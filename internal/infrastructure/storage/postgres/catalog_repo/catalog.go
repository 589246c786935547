// Package catalog_repo provides PostgreSQL lookup of warehouse and process
// master data.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"boxledger/internal/core/apperror"
	"boxledger/internal/domain/catalog"
	"boxledger/internal/infrastructure/storage/postgres"
)

const (
	warehousesTable = "warehouses"
	processesTable  = "processes"
)

// CatalogRepo implements catalog.Lookup on PostgreSQL.
type CatalogRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewCatalogRepo creates a new catalog repository.
func NewCatalogRepo(txManager *postgres.TxManager) *CatalogRepo {
	return &CatalogRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetWarehouse resolves one warehouse code.
func (r *CatalogRepo) GetWarehouse(ctx context.Context, code string) (catalog.Warehouse, error) {
	var wh catalog.Warehouse

	q := r.builder.Select("code", "name", "defect_warehouse").
		From(warehousesTable).
		Where(squirrel.Eq{"code": code}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return wh, fmt.Errorf("build query: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &wh, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return wh, apperror.NewNotFound("warehouse", code)
		}
		return wh, postgres.WrapStorageErr(fmt.Errorf("get warehouse: %w", err))
	}
	return wh, nil
}

// GetProcess resolves one process code.
func (r *CatalogRepo) GetProcess(ctx context.Context, code string) (catalog.Process, error) {
	var proc catalog.Process

	q := r.builder.Select("code", "name", "default_warehouse", "output_warehouse").
		From(processesTable).
		Where(squirrel.Eq{"code": code}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return proc, fmt.Errorf("build query: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &proc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return proc, apperror.NewNotFound("process", code)
		}
		return proc, postgres.WrapStorageErr(fmt.Errorf("get process: %w", err))
	}
	return proc, nil
}

// ListWarehouses returns all warehouse codes ordered by code.
func (r *CatalogRepo) ListWarehouses(ctx context.Context) ([]catalog.Warehouse, error) {
	q := r.builder.Select("code", "name", "defect_warehouse").
		From(warehousesTable).
		OrderBy("code")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var warehouses []catalog.Warehouse
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &warehouses, sql, args...); err != nil {
		return nil, postgres.WrapStorageErr(fmt.Errorf("select warehouses: %w", err))
	}
	return warehouses, nil
}

// Ensure interface compliance.
var _ catalog.Lookup = (*CatalogRepo)(nil)
