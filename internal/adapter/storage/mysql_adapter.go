package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/inventory-projection/internal/core/domain"
	"github.com/rl1809/inventory-projection/internal/port"
)

const errDuplicateEntry = 1062

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) GetInventory(ctx context.Context, tenantID, inventoryID string) (*domain.Inventory, error) {
	var inv domain.Inventory
	err := m.db.QueryRowContext(ctx, `
		SELECT i.id, i.project_id, p.tenant_id, i.product_name, i.stock_level,
		       i.reorder_level, i.version, i.created_at, i.updated_at
		FROM inventory i
		JOIN projects p ON p.id = i.project_id
		WHERE i.id = ? AND p.tenant_id = ?`, inventoryID, tenantID,
	).Scan(&inv.ID, &inv.ProjectID, &inv.TenantID, &inv.ProductName, &inv.StockLevel,
		&inv.ReorderLevel, &inv.Version, &inv.CreatedAt, &inv.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	return &inv, nil
}

func (m *MySQLAdapter) SaveAdjustment(ctx context.Context, inv domain.Inventory, newLevel int, msg domain.OutboxMessage) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE inventory
		SET stock_level = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		newLevel, msg.OccurredAt, inv.ID, inv.Version,
	)
	if err != nil {
		return fmt.Errorf("update inventory: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrOptimisticLock
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO outbox_messages (id, occurred_at, event_type, tenant_id, aggregate_id,
			command_id, payload, dispatched, dispatch_attempts, next_attempt_at, last_error, dead_lettered)
		VALUES (?, ?, ?, ?, ?, ?, ?, FALSE, 0, ?, '', FALSE)`,
		msg.ID, msg.OccurredAt, msg.EventType, msg.TenantID, msg.AggregateID,
		msg.CommandID, msg.Payload, msg.NextAttemptAt,
	)
	if isDuplicateEntry(err) {
		return port.ErrDuplicateCommand
	}
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}

	return tx.Commit()
}

func (m *MySQLAdapter) FindCommandEvent(ctx context.Context, tenantID, commandID string) (*domain.OutboxMessage, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT `+outboxColumns+`
		FROM outbox_messages
		WHERE tenant_id = ? AND command_id = ?`, tenantID, commandID)

	msg, err := scanOutbox(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query command event: %w", err)
	}
	return &msg, nil
}

// CreateProject and CreateInventory back the seed tool and tests; the service
// itself never creates aggregates.
func (m *MySQLAdapter) CreateProject(ctx context.Context, p domain.Project) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO projects (id, tenant_id, name, created_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.TenantID, p.Name, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) CreateInventory(ctx context.Context, inv domain.Inventory) error {
	now := time.Now().UTC()
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO inventory (id, project_id, product_name, stock_level, reorder_level, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		inv.ID, inv.ProjectID, inv.ProductName, inv.StockLevel, inv.ReorderLevel, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert inventory: %w", err)
	}
	return nil
}

func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateEntry
}
