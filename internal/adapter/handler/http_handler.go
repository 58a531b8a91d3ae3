package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rl1809/inventory-projection/internal/core/domain"
	"github.com/rl1809/inventory-projection/internal/core/service"
)

type HTTPHandler struct {
	inventoryService *service.InventoryService
	logger           *slog.Logger
}

type AdjustHTTPRequest struct {
	OrganizationID string `json:"organizationId"`
	InventoryID    string `json:"inventoryId"`
	Delta          int    `json:"delta"`
	CommandID      string `json:"commandId"`
}

type AdjustHTTPResponse struct {
	OK       bool `json:"ok"`
	NewLevel int  `json:"newLevel"`
}

type InventoryHTTPResponse struct {
	ProductName string    `json:"productName"`
	StockLevel  int       `json:"stockLevel"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

func NewHTTPHandler(inventoryService *service.InventoryService, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandler{inventoryService: inventoryService, logger: logger.With("component", "http")}
}

// Register mounts the command and query routes on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/commands/inventory/adjust", h.AdjustInventory)
	mux.HandleFunc("GET /api/queries/inventory/{orgId}/{productName}", h.GetInventory)
	mux.HandleFunc("GET /api/queries/inventory/{orgId}/projects/{projectId}", h.ListProjectInventory)
	mux.HandleFunc("GET /health", h.HealthCheck)
}

func (h *HTTPHandler) AdjustInventory(w http.ResponseWriter, r *http.Request) {
	var req AdjustHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: codeInvalidArgument, Error: "invalid request body"})
		return
	}

	if err := validateAdjust(req.OrganizationID, req.InventoryID, req.CommandID, req.Delta); err != nil {
		h.writeError(w, r, err)
		return
	}
	if !h.authorize(w, r, req.OrganizationID) {
		return
	}

	newLevel, err := h.inventoryService.AdjustInventory(r.Context(), domain.AdjustCommand{
		TenantID:    req.OrganizationID,
		AggregateID: req.InventoryID,
		Delta:       req.Delta,
		CommandID:   req.CommandID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AdjustHTTPResponse{OK: true, NewLevel: newLevel})
}

func (h *HTTPHandler) GetInventory(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("orgId")
	if err := requireUUID("orgId", orgID); err != nil {
		h.writeError(w, r, err)
		return
	}
	if !h.authorize(w, r, orgID) {
		return
	}

	row, err := h.inventoryService.GetInventory(r.Context(), orgID, r.PathValue("productName"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toInventoryResponse(*row))
}

func (h *HTTPHandler) ListProjectInventory(w http.ResponseWriter, r *http.Request) {
	orgID, projectID := r.PathValue("orgId"), r.PathValue("projectId")
	if err := requireUUID("orgId", orgID); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := requireUUID("projectId", projectID); err != nil {
		h.writeError(w, r, err)
		return
	}
	if !h.authorize(w, r, orgID) {
		return
	}

	rows, err := h.inventoryService.ListPartition(r.Context(), orgID, projectID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]InventoryHTTPResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toInventoryResponse(row))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) authorize(w http.ResponseWriter, r *http.Request, orgID string) bool {
	if err := authorizeTenant(r.Context(), orgID); err != nil {
		writeJSON(w, http.StatusForbidden, errorResponse{Code: "permission_denied", Error: err.Error()})
		return false
	}
	return true
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	info := describeError(err)
	if info.status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, info.status, errorResponse{Code: info.code, Error: info.message})
}

func toInventoryResponse(row domain.InventoryRead) InventoryHTTPResponse {
	return InventoryHTTPResponse{
		ProductName: row.ResourceName,
		StockLevel:  row.StockLevel,
		UpdatedAt:   row.UpdatedAt,
	}
}

// LogRequests writes one access log line per request.
func LogRequests(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
