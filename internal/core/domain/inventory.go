package domain

import (
	"math"
	"time"
)

// MaxStockLevel matches the storage column (signed 32-bit).
const MaxStockLevel = math.MaxInt32

// Inventory is the write-side aggregate. Readers never see it directly.
type Inventory struct {
	ID           string
	ProjectID    string
	TenantID     string
	ProductName  string
	StockLevel   int
	ReorderLevel int
	Version      int // optimistic locking, also the per-aggregate event sequence
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ValidDelta reports whether delta fits the stock column at all.
func ValidDelta(delta int) bool {
	return delta >= -MaxStockLevel && delta <= MaxStockLevel
}

// Adjust returns the level the aggregate would have after applying delta.
// Callers bound delta with ValidDelta first.
func (i Inventory) Adjust(delta int) (int, bool) {
	newLevel := i.StockLevel + delta
	return newLevel, newLevel >= 0
}

// Project partitions inventory inside a tenant.
type Project struct {
	ID        string
	TenantID  string
	Name      string
	CreatedAt time.Time
}
