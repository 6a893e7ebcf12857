package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/iho/boardbalance/internal/adapter/http/dto"
	"github.com/iho/boardbalance/internal/usecase"
)

// RollupHandler handles rollup requests.
type RollupHandler struct {
	rollupUC RollupService
}

// NewRollupHandler creates a new RollupHandler.
func NewRollupHandler(rollupUC RollupService) *RollupHandler {
	return &RollupHandler{rollupUC: rollupUC}
}

// Create runs a rollup. An empty body uses the configured boards.
func (h *RollupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.RollupRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	h.run(r.Context(), w, req.ToUseCaseInput())
}

// HandleWebhook runs the configured rollup when the board platform reports a
// change. Challenges are echoed so the URL can be registered as a webhook.
func (h *RollupHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if _, answered := readDelivery(w, r); answered != "" {
		return
	}

	// Same as reconciliation webhooks: finish the write even if the platform hangs up.
	h.run(context.WithoutCancel(r.Context()), w, usecase.RollupInput{})
}

func (h *RollupHandler) run(ctx context.Context, w http.ResponseWriter, input usecase.RollupInput) {
	result, err := h.rollupUC.Rollup(ctx, input)
	if err != nil {
		writeError(w, mapDomainError(err), "rollup failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.RollupFromResult(result))
}
