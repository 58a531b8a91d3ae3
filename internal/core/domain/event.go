package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const EventTypeInventoryAdjusted = "InventoryAdjusted"

// InventoryEvent is the envelope carried on the bus and stored as the outbox
// payload.
type InventoryEvent struct {
	EventID      string    `json:"eventId"`
	EventType    string    `json:"eventType"`
	OccurredAt   time.Time `json:"occurredAt"`
	TenantID     string    `json:"tenantId"`
	AggregateID  string    `json:"aggregateId"`
	PartitionID  string    `json:"partitionId"`
	ResourceName string    `json:"resourceName"`
	NewLevel     int       `json:"newLevel"`
	Delta        int       `json:"delta"`
	CommandID    string    `json:"commandId"`
	Version      int       `json:"version"`
}

// NewInventoryAdjusted snapshots an accepted command against the aggregate
// state it was applied to.
func NewInventoryAdjusted(inv Inventory, cmd AdjustCommand, newLevel int, now time.Time) InventoryEvent {
	return InventoryEvent{
		EventID:      uuid.NewString(),
		EventType:    EventTypeInventoryAdjusted,
		OccurredAt:   now.UTC(),
		TenantID:     cmd.TenantID,
		AggregateID:  inv.ID,
		PartitionID:  inv.ProjectID,
		ResourceName: inv.ProductName,
		NewLevel:     newLevel,
		Delta:        cmd.Delta,
		CommandID:    cmd.CommandID,
		Version:      inv.Version + 1,
	}
}

// Key groups events of one aggregate so keyed brokers keep them ordered.
func (e InventoryEvent) Key() string {
	return e.TenantID + ":" + e.AggregateID
}

func (e InventoryEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// PeekEventType reads only eventType, so envelopes of other event types
// decode regardless of their field shapes.
func PeekEventType(payload []byte) (string, error) {
	var head struct {
		EventType string `json:"eventType"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return "", fmt.Errorf("decode event: %w", err)
	}
	if head.EventType == "" {
		return "", fmt.Errorf("decode event: missing eventType")
	}
	return head.EventType, nil
}

// DecodeInventoryEvent parses a bus payload. Unknown event types decode fine;
// callers decide whether to ignore them.
func DecodeInventoryEvent(payload []byte) (InventoryEvent, error) {
	var evt InventoryEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return InventoryEvent{}, fmt.Errorf("decode event: %w", err)
	}
	if evt.EventType == "" {
		return InventoryEvent{}, fmt.Errorf("decode event: missing eventType")
	}
	return evt, nil
}
