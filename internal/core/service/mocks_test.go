package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/inventory-projection/internal/core/domain"
	"github.com/rl1809/inventory-projection/internal/port"
)

// Mock write store: aggregates, projects and outbox
type mockStore struct {
	mu       sync.Mutex
	projects map[string]string // project id -> tenant id
	items    map[string]domain.Inventory
	outbox   []domain.OutboxMessage

	conflicts      int
	saveErr        error
	fetchErr       error
	saveResultsErr error
	savedBatches   int
}

func newMockStore() *mockStore {
	return &mockStore{
		projects: make(map[string]string),
		items:    make(map[string]domain.Inventory),
	}
}

func (m *mockStore) addItem(tenantID, projectID, inventoryID, product string, level int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[projectID] = tenantID
	m.items[inventoryID] = domain.Inventory{
		ID:          inventoryID,
		ProjectID:   projectID,
		ProductName: product,
		StockLevel:  level,
	}
}

func (m *mockStore) level(inventoryID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[inventoryID].StockLevel
}

func (m *mockStore) messages() []domain.OutboxMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.OutboxMessage, len(m.outbox))
	copy(out, m.outbox)
	return out
}

func (m *mockStore) GetInventory(ctx context.Context, tenantID, inventoryID string) (*domain.Inventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.items[inventoryID]
	if !ok || m.projects[inv.ProjectID] != tenantID {
		return nil, nil
	}
	inv.TenantID = tenantID
	return &inv, nil
}

func (m *mockStore) SaveAdjustment(ctx context.Context, inv domain.Inventory, newLevel int, msg domain.OutboxMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveErr != nil {
		return m.saveErr
	}
	if m.conflicts > 0 {
		m.conflicts--
		return port.ErrOptimisticLock
	}
	for _, o := range m.outbox {
		if o.TenantID == msg.TenantID && o.CommandID == msg.CommandID {
			return port.ErrDuplicateCommand
		}
	}
	cur := m.items[inv.ID]
	if cur.Version != inv.Version {
		return port.ErrOptimisticLock
	}
	cur.StockLevel = newLevel
	cur.Version++
	m.items[inv.ID] = cur
	m.outbox = append(m.outbox, msg)
	return nil
}

func (m *mockStore) FindCommandEvent(ctx context.Context, tenantID, commandID string) (*domain.OutboxMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.outbox {
		if o.TenantID == tenantID && o.CommandID == commandID {
			found := o
			return &found, nil
		}
	}
	return nil, nil
}

func (m *mockStore) FetchPending(ctx context.Context, limit int, now time.Time) ([]domain.OutboxMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	var pending []domain.OutboxMessage
	for _, o := range m.outbox {
		if o.Dispatched || o.DeadLettered || o.NextAttemptAt.After(now) {
			continue
		}
		pending = append(pending, o)
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].OccurredAt.Before(pending[j].OccurredAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (m *mockStore) SaveDispatchResults(ctx context.Context, msgs []domain.OutboxMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveResultsErr != nil {
		return m.saveResultsErr
	}
	m.savedBatches++
	for _, msg := range msgs {
		for i := range m.outbox {
			if m.outbox[i].ID == msg.ID {
				m.outbox[i] = msg
			}
		}
	}
	return nil
}

// Mock read model with the same version guard as the SQL upsert
type mockReads struct {
	mu       sync.Mutex
	rows     map[string]domain.InventoryRead
	failures int
	err      error
}

func newMockReads() *mockReads {
	return &mockReads{rows: make(map[string]domain.InventoryRead)}
}

func readKey(tenantID, partitionID, resource string) string {
	return tenantID + "/" + partitionID + "/" + resource
}

func (m *mockReads) ApplyProjection(ctx context.Context, row domain.InventoryRead) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failures != 0 {
		if m.failures > 0 {
			m.failures--
		}
		return false, m.err
	}
	key := readKey(row.TenantID, row.PartitionID, row.ResourceName)
	if cur, ok := m.rows[key]; ok && row.LastVersion < cur.LastVersion {
		return false, nil
	}
	m.rows[key] = row
	return true, nil
}

func (m *mockReads) GetByResource(ctx context.Context, tenantID, resourceName string) (*domain.InventoryRead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.rows {
		if r.TenantID == tenantID && r.ResourceName == resourceName {
			found := r
			return &found, nil
		}
	}
	return nil, nil
}

func (m *mockReads) ListByPartition(ctx context.Context, tenantID, partitionID string) ([]domain.InventoryRead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.InventoryRead
	for _, r := range m.rows {
		if r.TenantID == tenantID && r.PartitionID == partitionID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResourceName < out[j].ResourceName })
	return out, nil
}

func (m *mockReads) get(tenantID, partitionID, resource string) (domain.InventoryRead, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[readKey(tenantID, partitionID, resource)]
	return r, ok
}

// Mock bus: records publishes and feeds subscribers through a channel
type mockBus struct {
	mu        sync.Mutex
	published []string // keys in publish order
	payloads  [][]byte
	publishFn func(key string, payload []byte) error
	ch        chan []byte
}

func newMockBus() *mockBus {
	return &mockBus{ch: make(chan []byte, 100)}
}

func (b *mockBus) Publish(ctx context.Context, topic, key string, payload []byte) error {
	if b.publishFn != nil {
		if err := b.publishFn(key, payload); err != nil {
			return err
		}
	}
	b.mu.Lock()
	b.published = append(b.published, key)
	b.payloads = append(b.payloads, payload)
	b.mu.Unlock()

	select {
	case b.ch <- payload:
	default:
	}
	return nil
}

func (b *mockBus) Subscribe(ctx context.Context, topic string, handler port.MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload := <-b.ch:
			_ = handler(ctx, payload)
		}
	}
}

func (b *mockBus) publishedPayloads() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]byte, len(b.payloads))
	copy(out, b.payloads)
	return out
}

// Mock dead-letter sink
type mockDeadLetters struct {
	mu      sync.Mutex
	letters []port.DeadLetter
}

func (m *mockDeadLetters) SendDeadLetter(ctx context.Context, dl port.DeadLetter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.letters = append(m.letters, dl)
	return nil
}

func (m *mockDeadLetters) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.letters)
}
