package handler

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/rl1809/inventory-projection/internal/core/domain"
	"github.com/rl1809/inventory-projection/internal/core/service"
)

const maxCommandIDLen = 100

func requireUUID(field, value string) error {
	if _, err := uuid.Parse(value); err != nil {
		return fmt.Errorf("%w: %s must be a uuid", service.ErrInvalidCommand, field)
	}
	return nil
}

func validateAdjust(organizationID, inventoryID, commandID string, delta int) error {
	if err := requireUUID("organizationId", organizationID); err != nil {
		return err
	}
	if err := requireUUID("inventoryId", inventoryID); err != nil {
		return err
	}
	if commandID == "" || len(commandID) > maxCommandIDLen {
		return fmt.Errorf("%w: commandId is required and at most %d characters", service.ErrInvalidCommand, maxCommandIDLen)
	}
	if !domain.ValidDelta(delta) {
		return fmt.Errorf("%w: delta must be within +/-%d", service.ErrInvalidCommand, domain.MaxStockLevel)
	}
	return nil
}
