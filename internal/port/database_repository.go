package port

import (
	"context"
	"time"

	"github.com/rl1809/inventory-projection/internal/core/domain"
)

type InventoryRepository interface {
	// GetInventory loads an aggregate only if its project belongs to tenantID.
	// Returns nil, nil when nothing matches.
	GetInventory(ctx context.Context, tenantID, inventoryID string) (*domain.Inventory, error)

	// SaveAdjustment writes the new stock level with a version check and
	// inserts the outbox message in the same transaction
	SaveAdjustment(ctx context.Context, inv domain.Inventory, newLevel int, msg domain.OutboxMessage) error

	// FindCommandEvent returns the outbox message recorded for a command id,
	// nil when the command has not been applied yet
	FindCommandEvent(ctx context.Context, tenantID, commandID string) (*domain.OutboxMessage, error)
}

type OutboxRepository interface {
	// FetchPending returns up to limit undispatched, not dead-lettered messages
	// due at now, oldest first
	FetchPending(ctx context.Context, limit int, now time.Time) ([]domain.OutboxMessage, error)

	// SaveDispatchResults persists dispatched flags, attempt counters and retry
	// bookkeeping for a whole batch in one write
	SaveDispatchResults(ctx context.Context, msgs []domain.OutboxMessage) error
}

type ReadModelRepository interface {
	// ApplyProjection upserts the row unless a newer version is already stored.
	// Reports whether the row was written.
	ApplyProjection(ctx context.Context, row domain.InventoryRead) (bool, error)

	// GetByResource returns the row for a product name, nil when absent
	GetByResource(ctx context.Context, tenantID, resourceName string) (*domain.InventoryRead, error)

	// ListByPartition returns all rows of one project
	ListByPartition(ctx context.Context, tenantID, partitionID string) ([]domain.InventoryRead, error)
}
