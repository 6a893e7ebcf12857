package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/iho/boardbalance/internal/adapter/http/dto"
	"github.com/iho/boardbalance/internal/domain"
	"github.com/iho/boardbalance/internal/usecase"
)

const maxBodyBytes = 1 << 20

// Reconciler runs balance reconciliations.
type Reconciler interface {
	Reconcile(ctx context.Context, input usecase.ReconcileInput) (*usecase.ReconcileResult, error)
	Columns() domain.BalanceColumns
}

// RollupService runs rollups.
type RollupService interface {
	Rollup(ctx context.Context, input usecase.RollupInput) (*usecase.RollupResult, error)
}

// RunLister lists reconciliation runs.
type RunLister interface {
	ListRuns(ctx context.Context, input usecase.ListRunsInput) ([]*domain.ReconciliationRun, error)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrBoardBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrInvalidEvent):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRollupNotConfigured):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}
