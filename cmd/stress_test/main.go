// Package main hammers one inventory row with concurrent adjustments and
// checks that stock never goes negative and every accepted command left
// exactly one outbox event.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/rl1809/inventory-projection/internal/adapter/storage"
	"github.com/rl1809/inventory-projection/internal/config"
	"github.com/rl1809/inventory-projection/internal/core/domain"
	"github.com/rl1809/inventory-projection/internal/core/service"
	"github.com/rl1809/inventory-projection/internal/obs"
)

const (
	initialStock  = 20
	totalRequests = 50
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	logger, _ := obs.NewLogger(obs.LogConfig{Service: "stress", Level: "warn"})

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		fatal(err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)

	if err := storage.EnsureSchema(ctx, db); err != nil {
		fatal(err)
	}

	store := storage.NewMySQLAdapter(db)
	inventoryService := service.NewInventoryService(store, storage.NewMySQLReadModel(db), logger, nil)

	// Fresh tenant per run
	project := domain.Project{ID: uuid.NewString(), TenantID: uuid.NewString(), Name: "stress"}
	if err := store.CreateProject(ctx, project); err != nil {
		fatal(err)
	}
	inv := domain.Inventory{ID: uuid.NewString(), ProjectID: project.ID, TenantID: project.TenantID, ProductName: "Jeans", StockLevel: initialStock}
	if err := store.CreateInventory(ctx, inv); err != nil {
		fatal(err)
	}

	// Counters
	var successCount, rejectedCount, conflictCount, errorCount atomic.Int32
	var mu sync.Mutex
	var accepted []string

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			commandID := fmt.Sprintf("stress-%d-%s", n, uuid.NewString()[:8])
			_, err := inventoryService.AdjustInventory(ctx, domain.AdjustCommand{
				TenantID:    project.TenantID,
				AggregateID: inv.ID,
				Delta:       -1,
				CommandID:   commandID,
			})
			switch {
			case err == nil:
				successCount.Add(1)
				mu.Lock()
				accepted = append(accepted, commandID)
				mu.Unlock()
			case errors.Is(err, service.ErrInsufficientStock):
				rejectedCount.Add(1)
			case errors.Is(err, service.ErrConflict):
				conflictCount.Add(1)
			default:
				errorCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	final, err := store.GetInventory(ctx, project.TenantID, inv.ID)
	if err != nil || final == nil {
		fatal(fmt.Errorf("reload inventory: %v", err))
	}

	missing := 0
	for _, commandID := range accepted {
		msg, err := store.FindCommandEvent(ctx, project.TenantID, commandID)
		if err != nil || msg == nil {
			missing++
		}
	}

	success := int(successCount.Load())

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Accepted:         %d\n", success)
	fmt.Printf("Rejected:         %d\n", rejectedCount.Load())
	fmt.Printf("Conflicts:        %d\n", conflictCount.Load())
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Printf("Final Stock:      %d (version %d)\n", final.StockLevel, final.Version)
	fmt.Println("==========================================")

	failed := false
	if final.StockLevel < 0 {
		fmt.Println("FAIL: stock went negative")
		failed = true
	}
	if final.StockLevel != initialStock-success || final.Version != success {
		fmt.Printf("FAIL: expected stock %d version %d\n", initialStock-success, success)
		failed = true
	}
	if missing > 0 {
		fmt.Printf("FAIL: %d accepted commands have no outbox event\n", missing)
		failed = true
	}
	if failed {
		os.Exit(1)
	}
	fmt.Println("PASS: stock, version and outbox agree")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
