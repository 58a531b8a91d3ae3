package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rl1809/inventory-projection/internal/core/domain"
	"github.com/rl1809/inventory-projection/internal/port"
)

var (
	ErrInvalidCommand    = errors.New("invalid command")
	ErrNotFound          = errors.New("inventory not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("inventory modified concurrently")
)

// maxAdjustAttempts bounds reload-and-retry on optimistic lock conflicts.
const maxAdjustAttempts = 3

// InventoryService is the command handler for stock adjustments and the
// query side over the read model.
type InventoryService struct {
	store    port.InventoryRepository
	reads    port.ReadModelRepository
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

func NewInventoryService(store port.InventoryRepository, reads port.ReadModelRepository, logger *slog.Logger, recorder Recorder) *InventoryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &InventoryService{
		store:    store,
		reads:    reads,
		logger:   logger.With("component", "inventory_service"),
		recorder: recorderOrNop(recorder),
		now:      time.Now,
	}
}

// AdjustInventory applies cmd.Delta to the tenant's aggregate and records one
// outbox event in the same transaction. A command id that was already applied
// returns the level it produced without writing anything.
func (s *InventoryService) AdjustInventory(ctx context.Context, cmd domain.AdjustCommand) (int, error) {
	if cmd.TenantID == "" || cmd.AggregateID == "" || cmd.CommandID == "" {
		s.recorder.CommandHandled(OutcomeInvalid)
		return 0, fmt.Errorf("%w: tenant, inventory and command id are required", ErrInvalidCommand)
	}
	if !domain.ValidDelta(cmd.Delta) {
		s.recorder.CommandHandled(OutcomeInvalid)
		return 0, fmt.Errorf("%w: delta %d out of range", ErrInvalidCommand, cmd.Delta)
	}

	level, replayed, err := s.replay(ctx, cmd)
	if err != nil {
		s.recorder.CommandHandled(outcomeFor(err))
		return 0, err
	}
	if replayed {
		s.recorder.CommandHandled(OutcomeReplayed)
		return level, nil
	}

	for attempt := 1; ; attempt++ {
		newLevel, err := s.tryAdjust(ctx, cmd)
		switch {
		case err == nil:
			s.recorder.CommandHandled(OutcomeOK)
			s.logger.InfoContext(ctx, "inventory adjusted",
				"tenant_id", cmd.TenantID, "inventory_id", cmd.AggregateID,
				"delta", cmd.Delta, "new_level", newLevel, "command_id", cmd.CommandID)
			return newLevel, nil

		case errors.Is(err, port.ErrDuplicateCommand):
			// a concurrent retry of the same command won the insert
			level, replayed, rerr := s.replay(ctx, cmd)
			if rerr != nil {
				s.recorder.CommandHandled(outcomeFor(rerr))
				return 0, rerr
			}
			if replayed {
				s.recorder.CommandHandled(OutcomeReplayed)
				return level, nil
			}
			s.recorder.CommandHandled(OutcomeError)
			return 0, fmt.Errorf("command %s reported duplicate but has no event", cmd.CommandID)

		case errors.Is(err, port.ErrOptimisticLock) && attempt < maxAdjustAttempts:
			s.logger.DebugContext(ctx, "optimistic lock conflict, reloading",
				"inventory_id", cmd.AggregateID, "attempt", attempt)
			continue

		case errors.Is(err, port.ErrOptimisticLock):
			s.recorder.CommandHandled(OutcomeConflict)
			return 0, fmt.Errorf("%w: %d attempts", ErrConflict, attempt)

		default:
			s.recorder.CommandHandled(outcomeFor(err))
			if outcomeFor(err) == OutcomeError {
				s.logger.ErrorContext(ctx, "adjust inventory failed",
					"inventory_id", cmd.AggregateID, "command_id", cmd.CommandID, "error", err)
			}
			return 0, err
		}
	}
}

func (s *InventoryService) tryAdjust(ctx context.Context, cmd domain.AdjustCommand) (int, error) {
	inv, err := s.store.GetInventory(ctx, cmd.TenantID, cmd.AggregateID)
	if err != nil {
		return 0, fmt.Errorf("load inventory: %w", err)
	}
	if inv == nil {
		return 0, ErrNotFound
	}

	newLevel, ok := inv.Adjust(cmd.Delta)
	if !ok {
		return 0, fmt.Errorf("%w: level %d, delta %d", ErrInsufficientStock, inv.StockLevel, cmd.Delta)
	}
	if newLevel > domain.MaxStockLevel {
		return 0, fmt.Errorf("%w: level %d, delta %d exceeds the maximum stock level", ErrInvalidCommand, inv.StockLevel, cmd.Delta)
	}

	evt := domain.NewInventoryAdjusted(*inv, cmd, newLevel, s.now())
	msg, err := domain.NewOutboxMessage(evt)
	if err != nil {
		return 0, fmt.Errorf("build outbox message: %w", err)
	}

	if err := s.store.SaveAdjustment(ctx, *inv, newLevel, msg); err != nil {
		return 0, fmt.Errorf("save adjustment: %w", err)
	}
	return newLevel, nil
}

// replay looks up the event a command already produced.
func (s *InventoryService) replay(ctx context.Context, cmd domain.AdjustCommand) (int, bool, error) {
	msg, err := s.store.FindCommandEvent(ctx, cmd.TenantID, cmd.CommandID)
	if err != nil {
		return 0, false, fmt.Errorf("lookup command: %w", err)
	}
	if msg == nil {
		return 0, false, nil
	}

	evt, err := domain.DecodeInventoryEvent(msg.Payload)
	if err != nil {
		return 0, false, fmt.Errorf("lookup command: %w", err)
	}
	if evt.AggregateID != cmd.AggregateID || evt.Delta != cmd.Delta {
		return 0, false, fmt.Errorf("%w: command id %s was used for a different adjustment", ErrInvalidCommand, cmd.CommandID)
	}
	return evt.NewLevel, true, nil
}

// GetInventory serves a product's stock from the read model only.
func (s *InventoryService) GetInventory(ctx context.Context, tenantID, resourceName string) (*domain.InventoryRead, error) {
	if tenantID == "" || resourceName == "" {
		return nil, fmt.Errorf("%w: tenant and product name are required", ErrInvalidCommand)
	}

	row, err := s.reads.GetByResource(ctx, tenantID, resourceName)
	if err != nil {
		return nil, fmt.Errorf("query read model: %w", err)
	}
	if row == nil {
		return nil, ErrNotFound
	}
	return row, nil
}

// ListPartition returns every projected product of one project.
func (s *InventoryService) ListPartition(ctx context.Context, tenantID, partitionID string) ([]domain.InventoryRead, error) {
	if tenantID == "" || partitionID == "" {
		return nil, fmt.Errorf("%w: tenant and project id are required", ErrInvalidCommand)
	}

	rows, err := s.reads.ListByPartition(ctx, tenantID, partitionID)
	if err != nil {
		return nil, fmt.Errorf("query read model: %w", err)
	}
	return rows, nil
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrInsufficientStock):
		return OutcomeRejected
	case errors.Is(err, ErrInvalidCommand):
		return OutcomeInvalid
	case errors.Is(err, ErrConflict):
		return OutcomeConflict
	default:
		return OutcomeError
	}
}
