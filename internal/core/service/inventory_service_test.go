package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rl1809/inventory-projection/internal/core/domain"
)

const (
	tenantA  = "tenant-a"
	tenantB  = "tenant-b"
	projectA = "project-a"
	projectB = "project-b"
	jeansID  = "inv-jeans"
	shirtsID = "inv-shirts"
)

func newTestService() (*InventoryService, *mockStore, *mockReads) {
	store := newMockStore()
	store.addItem(tenantA, projectA, jeansID, "Jeans", 20)
	store.addItem(tenantB, projectB, shirtsID, "Shirts", 10)
	reads := newMockReads()
	return NewInventoryService(store, reads, nil, nil), store, reads
}

func adjust(id string, delta int, commandID string) domain.AdjustCommand {
	return domain.AdjustCommand{TenantID: tenantA, AggregateID: id, Delta: delta, CommandID: commandID}
}

func TestAdjustInventory_Success(t *testing.T) {
	svc, store, _ := newTestService()

	newLevel, err := svc.AdjustInventory(context.Background(), adjust(jeansID, -5, "cmd-1"))
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if newLevel != 15 {
		t.Errorf("expected new level 15, got %d", newLevel)
	}
	if store.level(jeansID) != 15 {
		t.Errorf("expected stored level 15, got %d", store.level(jeansID))
	}

	msgs := store.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 outbox message, got %d", len(msgs))
	}
	msg := msgs[0]
	if msg.Dispatched || msg.DispatchAttempts != 0 {
		t.Errorf("expected fresh outbox message, got dispatched=%v attempts=%d", msg.Dispatched, msg.DispatchAttempts)
	}
	if msg.TenantID != tenantA || msg.CommandID != "cmd-1" || msg.EventType != domain.EventTypeInventoryAdjusted {
		t.Errorf("unexpected outbox message: %+v", msg)
	}

	evt, err := domain.DecodeInventoryEvent(msg.Payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if evt.NewLevel != 15 || evt.Delta != -5 || evt.ResourceName != "Jeans" || evt.PartitionID != projectA {
		t.Errorf("unexpected event snapshot: %+v", evt)
	}
	if evt.Version != 1 {
		t.Errorf("expected version 1, got %d", evt.Version)
	}
	if evt.EventID != msg.ID {
		t.Errorf("expected outbox id to match event id")
	}
}

func TestAdjustInventory_InsufficientStock(t *testing.T) {
	svc, store, _ := newTestService()

	_, err := svc.AdjustInventory(context.Background(), adjust(jeansID, -30, "cmd-1"))
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got: %v", err)
	}
	if store.level(jeansID) != 20 {
		t.Errorf("expected level to stay 20, got %d", store.level(jeansID))
	}
	if len(store.messages()) != 0 {
		t.Errorf("expected no outbox message, got %d", len(store.messages()))
	}
}

func TestAdjustInventory_DeltaOutOfRange(t *testing.T) {
	svc, store, _ := newTestService()

	tests := []struct {
		name  string
		delta int
	}{
		{"max int64", math.MaxInt64},
		{"min int64", math.MinInt64},
		{"beyond int32", 3_000_000_000},
		{"level overflows column", math.MaxInt32 - 10},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AdjustInventory(context.Background(), adjust(jeansID, tt.delta, fmt.Sprintf("cmd-range-%d", i)))
			if !errors.Is(err, ErrInvalidCommand) {
				t.Fatalf("expected ErrInvalidCommand, got: %v", err)
			}
		})
	}

	if store.level(jeansID) != 20 {
		t.Errorf("expected level to stay 20, got %d", store.level(jeansID))
	}
	if len(store.messages()) != 0 {
		t.Errorf("expected no outbox message, got %d", len(store.messages()))
	}
}

func TestAdjustInventory_CrossTenant(t *testing.T) {
	svc, store, _ := newTestService()

	// tenant A targets tenant B's aggregate
	_, err := svc.AdjustInventory(context.Background(), adjust(shirtsID, -1, "cmd-1"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
	if store.level(shirtsID) != 10 {
		t.Errorf("expected level to stay 10, got %d", store.level(shirtsID))
	}
	if len(store.messages()) != 0 {
		t.Error("expected no outbox message")
	}

	_, err = svc.AdjustInventory(context.Background(), adjust("missing", 1, "cmd-2"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing aggregate, got: %v", err)
	}
}

func TestAdjustInventory_InvalidCommand(t *testing.T) {
	svc, _, _ := newTestService()

	cases := []domain.AdjustCommand{
		{AggregateID: jeansID, Delta: 1, CommandID: "c"},
		{TenantID: tenantA, Delta: 1, CommandID: "c"},
		{TenantID: tenantA, AggregateID: jeansID, Delta: 1},
	}
	for i, cmd := range cases {
		if _, err := svc.AdjustInventory(context.Background(), cmd); !errors.Is(err, ErrInvalidCommand) {
			t.Errorf("case %d: expected ErrInvalidCommand, got: %v", i, err)
		}
	}
}

func TestAdjustInventory_DeltaSequence(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 20; run++ {
		svc, store, _ := newTestService()
		expected := 20
		events := 0

		for i := 0; i < 30; i++ {
			delta := rng.Intn(21) - 12
			level, err := svc.AdjustInventory(context.Background(), adjust(jeansID, delta, fmt.Sprintf("run-%d-cmd-%d", run, i)))

			if expected+delta < 0 {
				if !errors.Is(err, ErrInsufficientStock) {
					t.Fatalf("run %d step %d: expected rejection, got level=%d err=%v", run, i, level, err)
				}
				if store.level(jeansID) != expected {
					t.Fatalf("run %d step %d: level changed on rejection", run, i)
				}
				continue
			}

			if err != nil {
				t.Fatalf("run %d step %d: unexpected error: %v", run, i, err)
			}
			expected += delta
			events++
			if level != expected {
				t.Fatalf("run %d step %d: expected level %d, got %d", run, i, expected, level)
			}
		}

		if store.level(jeansID) != expected {
			t.Errorf("run %d: expected stored level %d, got %d", run, expected, store.level(jeansID))
		}
		if len(store.messages()) != events {
			t.Errorf("run %d: expected %d outbox messages, got %d", run, events, len(store.messages()))
		}
	}
}

func TestAdjustInventory_SameCommandReplays(t *testing.T) {
	svc, store, _ := newTestService()

	first, err := svc.AdjustInventory(context.Background(), adjust(jeansID, -5, "cmd-1"))
	if err != nil {
		t.Fatalf("first adjust failed: %v", err)
	}

	second, err := svc.AdjustInventory(context.Background(), adjust(jeansID, -5, "cmd-1"))
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if second != first {
		t.Errorf("expected replayed level %d, got %d", first, second)
	}
	if store.level(jeansID) != 15 {
		t.Errorf("expected level 15 after retry, got %d", store.level(jeansID))
	}
	if len(store.messages()) != 1 {
		t.Errorf("expected exactly 1 outbox message, got %d", len(store.messages()))
	}
}

func TestAdjustInventory_CommandIDReused(t *testing.T) {
	svc, _, _ := newTestService()

	if _, err := svc.AdjustInventory(context.Background(), adjust(jeansID, -5, "cmd-1")); err != nil {
		t.Fatalf("first adjust failed: %v", err)
	}

	_, err := svc.AdjustInventory(context.Background(), adjust(jeansID, -2, "cmd-1"))
	if !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("expected ErrInvalidCommand for reused id, got: %v", err)
	}
}

func TestAdjustInventory_OptimisticLockRetry(t *testing.T) {
	svc, store, _ := newTestService()
	store.conflicts = 2

	level, err := svc.AdjustInventory(context.Background(), adjust(jeansID, 3, "cmd-1"))
	if err != nil {
		t.Fatalf("expected success after retries, got: %v", err)
	}
	if level != 23 {
		t.Errorf("expected level 23, got %d", level)
	}
}

func TestAdjustInventory_ConflictExhausted(t *testing.T) {
	svc, store, _ := newTestService()
	store.conflicts = maxAdjustAttempts

	_, err := svc.AdjustInventory(context.Background(), adjust(jeansID, 3, "cmd-1"))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got: %v", err)
	}
	if store.level(jeansID) != 20 {
		t.Errorf("expected level 20, got %d", store.level(jeansID))
	}
}

func TestAdjustInventory_PersistenceFailure(t *testing.T) {
	svc, store, _ := newTestService()
	dbErr := errors.New("connection refused")
	store.saveErr = dbErr

	_, err := svc.AdjustInventory(context.Background(), adjust(jeansID, -1, "cmd-1"))
	if !errors.Is(err, dbErr) {
		t.Fatalf("expected wrapped store error, got: %v", err)
	}
	for _, sentinel := range []error{ErrNotFound, ErrInsufficientStock, ErrInvalidCommand, ErrConflict} {
		if errors.Is(err, sentinel) {
			t.Errorf("transient failure must not look like %v", sentinel)
		}
	}

	// same command id succeeds once the store recovers
	store.saveErr = nil
	level, err := svc.AdjustInventory(context.Background(), adjust(jeansID, -1, "cmd-1"))
	if err != nil || level != 19 {
		t.Errorf("expected retry to succeed with 19, got level=%d err=%v", level, err)
	}
}

func TestAdjustInventory_Concurrent(t *testing.T) {
	svc, store, _ := newTestService()

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, err := svc.AdjustInventory(context.Background(), adjust(jeansID, -1, fmt.Sprintf("cmd-%d", id)))
			if err == nil {
				successCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	level := store.level(jeansID)
	if level < 0 {
		t.Fatalf("stock went negative: %d", level)
	}
	if int(successCount.Load()) != 20-level {
		t.Errorf("expected %d successes for level %d, got %d", 20-level, level, successCount.Load())
	}
	if len(store.messages()) != int(successCount.Load()) {
		t.Errorf("expected one outbox message per success, got %d", len(store.messages()))
	}
}

func TestGetInventory(t *testing.T) {
	svc, _, reads := newTestService()

	if _, err := svc.GetInventory(context.Background(), tenantA, "Jeans"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound before projection, got: %v", err)
	}

	reads.rows[readKey(tenantA, projectA, "Jeans")] = domain.InventoryRead{
		TenantID: tenantA, PartitionID: projectA, ResourceName: "Jeans", StockLevel: 15, LastVersion: 1,
	}

	row, err := svc.GetInventory(context.Background(), tenantA, "Jeans")
	if err != nil {
		t.Fatalf("GetInventory failed: %v", err)
	}
	if row.StockLevel != 15 {
		t.Errorf("expected stock 15, got %d", row.StockLevel)
	}

	if _, err := svc.GetInventory(context.Background(), tenantB, "Jeans"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected other tenant to get ErrNotFound, got: %v", err)
	}

	rows, err := svc.ListPartition(context.Background(), tenantA, projectA)
	if err != nil || len(rows) != 1 {
		t.Errorf("expected 1 row in partition, got %d (err=%v)", len(rows), err)
	}
}
