package handler

import (
	"net/http"

	"github.com/iho/boardbalance/internal/adapter/http/dto"
	"github.com/iho/boardbalance/internal/domain"
	"github.com/iho/boardbalance/internal/usecase"
)

// RunHandler serves the reconciliation history.
type RunHandler struct {
	runUC RunLister
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(runUC RunLister) *RunHandler {
	return &RunHandler{runUC: runUC}
}

// List lists runs, optionally filtered by board_id.
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runUC.ListRuns(r.Context(), usecase.ListRunsInput{
		BoardID: r.URL.Query().Get("board_id"),
		Limit:   parseIntQuery(r, "limit", domain.DefaultPageSize),
		Offset:  parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list runs", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.RunsFromDomain(runs))
}
