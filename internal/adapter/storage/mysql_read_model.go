package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/inventory-projection/internal/core/domain"
)

// MySQLReadModel owns inventory_reads. Only the projection writes to it.
type MySQLReadModel struct {
	db *sql.DB
}

func NewMySQLReadModel(db *sql.DB) *MySQLReadModel {
	return &MySQLReadModel{db: db}
}

// ApplyProjection inserts or overwrites the row unless a newer version is
// stored. last_version must be assigned last: MySQL evaluates the SET list
// left to right against the updated row. The row alias needs MySQL 8.0.19+.
func (r *MySQLReadModel) ApplyProjection(ctx context.Context, row domain.InventoryRead) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO inventory_reads (tenant_id, partition_id, resource_name, stock_level, last_version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?) AS new
		ON DUPLICATE KEY UPDATE
			stock_level  = IF(new.last_version >= last_version, new.stock_level, stock_level),
			updated_at   = IF(new.last_version >= last_version, new.updated_at, updated_at),
			last_version = GREATEST(last_version, new.last_version)`,
		row.TenantID, row.PartitionID, row.ResourceName, row.StockLevel, row.LastVersion, row.UpdatedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("upsert inventory read: %w", err)
	}

	// With CLIENT_FOUND_ROWS off (the driver default) an upsert reports 1 for
	// an insert, 2 for a changed row and 0 when every column kept its value.
	// A redelivery of the current version still counts as applied because it
	// carries a new updated_at. Enabling clientFoundRows would turn the stale
	// case into 1 and break this check.
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

func (r *MySQLReadModel) GetByResource(ctx context.Context, tenantID, resourceName string) (*domain.InventoryRead, error) {
	var row domain.InventoryRead
	err := r.db.QueryRowContext(ctx, `
		SELECT tenant_id, partition_id, resource_name, stock_level, last_version, updated_at
		FROM inventory_reads
		WHERE tenant_id = ? AND resource_name = ?
		ORDER BY updated_at DESC
		LIMIT 1`, tenantID, resourceName,
	).Scan(&row.TenantID, &row.PartitionID, &row.ResourceName, &row.StockLevel, &row.LastVersion, &row.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory read: %w", err)
	}
	return &row, nil
}

func (r *MySQLReadModel) ListByPartition(ctx context.Context, tenantID, partitionID string) ([]domain.InventoryRead, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tenant_id, partition_id, resource_name, stock_level, last_version, updated_at
		FROM inventory_reads
		WHERE tenant_id = ? AND partition_id = ?
		ORDER BY resource_name`, tenantID, partitionID)
	if err != nil {
		return nil, fmt.Errorf("query inventory reads: %w", err)
	}
	defer rows.Close()

	var out []domain.InventoryRead
	for rows.Next() {
		var row domain.InventoryRead
		if err := rows.Scan(&row.TenantID, &row.PartitionID, &row.ResourceName, &row.StockLevel, &row.LastVersion, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory read: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
