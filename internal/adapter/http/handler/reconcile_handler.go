package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/boardbalance/internal/adapter/http/dto"
	"github.com/iho/boardbalance/internal/domain"
)

// ReconcileHandler handles manual reconciliation requests.
type ReconcileHandler struct {
	reconciler Reconciler
}

// NewReconcileHandler creates a new ReconcileHandler.
func NewReconcileHandler(reconciler Reconciler) *ReconcileHandler {
	return &ReconcileHandler{reconciler: reconciler}
}

// Reconcile recomputes the balance from the item in the URL.
func (h *ReconcileHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	boardID := chi.URLParam(r, "boardID")
	itemID := chi.URLParam(r, "itemID")
	if boardID == "" || itemID == "" {
		writeError(w, http.StatusBadRequest, "missing board or item ID", "")
		return
	}

	var req dto.ReconcileRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput(boardID, itemID, h.reconciler.Columns().DeltaColumnID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid delta", err.Error())
		return
	}

	result, err := h.reconciler.Reconcile(r.Context(), input)
	if err != nil {
		var writeErr *domain.WriteError
		if errors.As(err, &writeErr) && result != nil {
			// Partial write-back: report what was written alongside the failure.
			writeJSON(w, http.StatusBadGateway, dto.ReconcileFromResult(result))
			return
		}
		writeError(w, mapDomainError(err), "reconciliation failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconcileFromResult(result))
}
