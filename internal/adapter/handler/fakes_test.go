package handler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/inventory-projection/internal/core/domain"
	"github.com/rl1809/inventory-projection/internal/core/service"
)

var (
	orgID     = uuid.NewString()
	projectID = uuid.NewString()
	jeansID   = uuid.NewString()
)

type fakeStore struct {
	mu     sync.Mutex
	items  map[string]domain.Inventory
	outbox []domain.OutboxMessage
}

func (f *fakeStore) GetInventory(ctx context.Context, tenantID, inventoryID string) (*domain.Inventory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.items[inventoryID]
	if !ok || inv.TenantID != tenantID {
		return nil, nil
	}
	return &inv, nil
}

func (f *fakeStore) SaveAdjustment(ctx context.Context, inv domain.Inventory, newLevel int, msg domain.OutboxMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv.StockLevel = newLevel
	inv.Version++
	f.items[inv.ID] = inv
	f.outbox = append(f.outbox, msg)
	return nil
}

func (f *fakeStore) FindCommandEvent(ctx context.Context, tenantID, commandID string) (*domain.OutboxMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.outbox {
		if m.TenantID == tenantID && m.CommandID == commandID {
			return &m, nil
		}
	}
	return nil, nil
}

type fakeReads struct {
	mu   sync.Mutex
	rows []domain.InventoryRead
}

func (f *fakeReads) ApplyProjection(ctx context.Context, row domain.InventoryRead) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, row)
	return true, nil
}

func (f *fakeReads) GetByResource(ctx context.Context, tenantID, resourceName string) (*domain.InventoryRead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.TenantID == tenantID && r.ResourceName == resourceName {
			return &r, nil
		}
	}
	return nil, nil
}

func (f *fakeReads) ListByPartition(ctx context.Context, tenantID, partitionID string) ([]domain.InventoryRead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.InventoryRead
	for _, r := range f.rows {
		if r.TenantID == tenantID && r.PartitionID == partitionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestService() *service.InventoryService {
	store := &fakeStore{items: map[string]domain.Inventory{
		jeansID: {ID: jeansID, ProjectID: projectID, TenantID: orgID, ProductName: "Jeans", StockLevel: 20},
	}}
	reads := &fakeReads{rows: []domain.InventoryRead{{
		TenantID:     orgID,
		PartitionID:  projectID,
		ResourceName: "Jeans",
		StockLevel:   20,
		LastVersion:  0,
		UpdatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}}}
	return service.NewInventoryService(store, reads, nil, nil)
}
