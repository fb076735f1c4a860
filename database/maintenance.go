package database

import (
	"context"
	"fmt"

	"github.com/siherrmann/recaller/helper"
	loadSql "github.com/siherrmann/recaller/sql"
)

// MaintenanceDBHandlerFunctions defines the interface for eviction and flush operations.
type MaintenanceDBHandlerFunctions interface {
	EvictExpiredRelations(ctx context.Context, nowMillis int64, batchSize int) (int, error)
	EvictExpiredNodes(ctx context.Context, nowMillis int64, batchSize int) (int, error)
	WipeStore(ctx context.Context) error
}

// MaintenanceDBHandler handles eviction and flush operations.
// It operates on the tables of the other handlers and owns no table itself.
type MaintenanceDBHandler struct {
	db *helper.Database
}

// NewMaintenanceDBHandler creates a new maintenance database handler.
// It initializes the database connection and loads the eviction SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewMaintenanceDBHandler(db *helper.Database, force bool) (*MaintenanceDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	maintenanceDbHandler := &MaintenanceDBHandler{
		db: db,
	}

	err := loadSql.LoadMaintenanceSql(maintenanceDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load maintenance sql", err)
	}

	db.Logger.Info("Initialized MaintenanceDBHandler")

	return maintenanceDbHandler, nil
}

// EvictExpiredRelations deletes at most batchSize mention and part_of rows
// whose expiration is non-zero and in the past. Returns the deleted count.
func (h *MaintenanceDBHandler) EvictExpiredRelations(ctx context.Context, nowMillis int64, batchSize int) (int, error) {
	var count int
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT evict_expired_relations($1, $2)`,
		nowMillis,
		batchSize,
	)

	err := row.Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	return count, nil
}

// EvictExpiredNodes deletes at most batchSize expired nodes together with
// their remaining relations. The returned count covers nodes only.
func (h *MaintenanceDBHandler) EvictExpiredNodes(ctx context.Context, nowMillis int64, batchSize int) (int, error) {
	var count int
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT evict_expired_nodes($1, $2)`,
		nowMillis,
		batchSize,
	)

	err := row.Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	return count, nil
}

// WipeStore empties the store
func (h *MaintenanceDBHandler) WipeStore(ctx context.Context) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT wipe_store()`)
	if err != nil {
		return helper.NewError("exec", err)
	}

	return nil
}
