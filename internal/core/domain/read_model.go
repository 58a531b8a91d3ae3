package domain

import "time"

// InventoryRead is the denormalized row served to queries.
type InventoryRead struct {
	TenantID     string
	PartitionID  string
	ResourceName string
	StockLevel   int
	LastVersion  int
	UpdatedAt    time.Time
}

// ReadFromEvent projects an event into its read-model row.
func ReadFromEvent(evt InventoryEvent, now time.Time) InventoryRead {
	return InventoryRead{
		TenantID:     evt.TenantID,
		PartitionID:  evt.PartitionID,
		ResourceName: evt.ResourceName,
		StockLevel:   evt.NewLevel,
		LastVersion:  evt.Version,
		UpdatedAt:    now.UTC(),
	}
}
