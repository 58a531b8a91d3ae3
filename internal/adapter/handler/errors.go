package handler

import (
	"errors"
	"net/http"

	"github.com/rl1809/inventory-projection/internal/core/service"
)

const (
	codeNotFound          = "not_found"
	codeInsufficientStock = "insufficient_stock"
	codeInvalidArgument   = "invalid_argument"
	codeConflict          = "conflict"
	codeUnavailable       = "unavailable"
)

type errorInfo struct {
	status  int
	code    string
	message string
}

// describeError maps service errors onto both transports. Anything
// unrecognised is treated as a transient storage failure.
func describeError(err error) errorInfo {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return errorInfo{http.StatusNotFound, codeNotFound, "inventory not found"}
	case errors.Is(err, service.ErrInsufficientStock):
		return errorInfo{http.StatusConflict, codeInsufficientStock, "insufficient stock"}
	case errors.Is(err, service.ErrInvalidCommand):
		return errorInfo{http.StatusBadRequest, codeInvalidArgument, err.Error()}
	case errors.Is(err, service.ErrConflict):
		return errorInfo{http.StatusConflict, codeConflict, "inventory modified concurrently, retry"}
	default:
		return errorInfo{http.StatusServiceUnavailable, codeUnavailable, "service unavailable"}
	}
}
