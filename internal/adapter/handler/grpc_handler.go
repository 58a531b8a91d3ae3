package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rl1809/inventory-projection/internal/adapter/handler/inventoryrpc"
	"github.com/rl1809/inventory-projection/internal/core/domain"
	"github.com/rl1809/inventory-projection/internal/core/service"
)

// GRPCHandler reports domain failures in the response body, keeping gRPC
// status errors for transport and auth problems.
type GRPCHandler struct {
	inventoryService *service.InventoryService
	logger           *slog.Logger
}

func NewGRPCHandler(inventoryService *service.InventoryService, logger *slog.Logger) *GRPCHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GRPCHandler{inventoryService: inventoryService, logger: logger.With("component", "grpc")}
}

func (h *GRPCHandler) AdjustInventory(ctx context.Context, req *inventoryrpc.AdjustInventoryRequest) (*inventoryrpc.AdjustInventoryResponse, error) {
	if err := validateAdjust(req.OrganizationId, req.InventoryId, req.CommandId, int(req.Delta)); err != nil {
		info := h.describe(ctx, err)
		return &inventoryrpc.AdjustInventoryResponse{Code: info.code, Message: info.message}, nil
	}

	newLevel, err := h.inventoryService.AdjustInventory(ctx, domain.AdjustCommand{
		TenantID:    req.OrganizationId,
		AggregateID: req.InventoryId,
		Delta:       int(req.Delta),
		CommandID:   req.CommandId,
	})
	if err != nil {
		info := h.describe(ctx, err)
		return &inventoryrpc.AdjustInventoryResponse{Code: info.code, Message: info.message}, nil
	}

	return &inventoryrpc.AdjustInventoryResponse{
		Ok:       true,
		NewLevel: int32(newLevel),
		Message:  "inventory adjusted",
	}, nil
}

func (h *GRPCHandler) GetInventory(ctx context.Context, req *inventoryrpc.GetInventoryRequest) (*inventoryrpc.GetInventoryResponse, error) {
	if err := requireUUID("organizationId", req.OrganizationId); err != nil {
		info := h.describe(ctx, err)
		return &inventoryrpc.GetInventoryResponse{Code: info.code, Message: info.message}, nil
	}

	row, err := h.inventoryService.GetInventory(ctx, req.OrganizationId, req.ProductName)
	if err != nil {
		info := h.describe(ctx, err)
		return &inventoryrpc.GetInventoryResponse{Code: info.code, Message: info.message}, nil
	}

	return &inventoryrpc.GetInventoryResponse{
		Ok: true,
		Item: &inventoryrpc.InventoryItem{
			ProductName: row.ResourceName,
			ProjectId:   row.PartitionID,
			StockLevel:  int32(row.StockLevel),
			Version:     int32(row.LastVersion),
			UpdatedAt:   row.UpdatedAt.UTC().Format(time.RFC3339Nano),
		},
	}, nil
}

func (h *GRPCHandler) describe(ctx context.Context, err error) errorInfo {
	info := describeError(err)
	if info.status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "rpc failed", "error", err)
	}
	return info
}
