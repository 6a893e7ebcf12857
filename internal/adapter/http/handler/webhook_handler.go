package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/boardbalance/internal/adapter/http/dto"
	"github.com/iho/boardbalance/internal/domain"
	"github.com/iho/boardbalance/internal/infrastructure/metrics"
	"github.com/iho/boardbalance/internal/usecase"
)

const (
	pendingMarker   = "processing"
	webhookKeyScope = "webhook:"
)

// WebhookConfig holds webhook handling settings.
type WebhookConfig struct {
	// BoardID restricts handling to one board when set.
	BoardID  string
	DedupTTL time.Duration
}

// WebhookHandler handles board platform webhook deliveries.
type WebhookHandler struct {
	reconciler Reconciler
	dedup      usecase.IdempotencyStore
	cfg        WebhookConfig
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler. dedup and m may be nil.
func NewWebhookHandler(reconciler Reconciler, dedup usecase.IdempotencyStore, cfg WebhookConfig, m *metrics.Metrics, logger zerolog.Logger) *WebhookHandler {
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = usecase.IdempotencyKeyTTL
	}
	return &WebhookHandler{
		reconciler: reconciler,
		dedup:      dedup,
		cfg:        cfg,
		metrics:    m,
		logger:     logger,
	}
}

// Handle answers challenges and reconciles the board on delta changes.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ev, answered := readDelivery(w, r)
	if answered != "" {
		h.count(answered)
		return
	}

	if err := ev.Validate(); err != nil {
		h.count("invalid")
		writeError(w, http.StatusBadRequest, "invalid event", err.Error())
		return
	}

	event, numeric := ev.ToChangeEvent()
	if !event.Targets(h.cfg.BoardID, h.reconciler.Columns().DeltaColumnID) {
		h.count("ignored")
		writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "column not monitored"})
		return
	}
	if !numeric {
		h.logger.Debug().
			Str("board_id", event.BoardID).
			Str("item_id", event.ItemID).
			RawJSON("value", ev.Value).
			Msg("non-numeric delta counted as zero")
	}

	key := ""
	if h.dedup != nil && event.TriggerID != "" {
		key = webhookKeyScope + event.TriggerID
		if done := h.replayDuplicate(w, r, key); done {
			return
		}
	}

	h.count("change")

	// The platform may hang up before a long board finishes; the write-back
	// still completes within the reconcile timeout.
	ctx := context.WithoutCancel(r.Context())
	result, err := h.reconciler.Reconcile(ctx, usecase.ReconcileInput{
		Event:   event,
		Trigger: domain.TriggerWebhook,
	})
	if err != nil {
		if key != "" {
			if delErr := h.dedup.Delete(ctx, key); delErr != nil {
				h.logger.Warn().Err(delErr).Str("trigger_id", event.TriggerID).Msg("failed to release webhook key")
			}
		}
		writeError(w, mapDomainError(err), "reconciliation failed", err.Error())
		return
	}

	body, _ := json.Marshal(dto.WebhookResponse{
		Success:      true,
		RunID:        result.RunID,
		ItemsUpdated: result.ItemsUpdated,
	})
	if key != "" {
		if err := h.dedup.Update(ctx, key, body, h.cfg.DedupTTL); err != nil {
			h.logger.Warn().Err(err).Str("trigger_id", event.TriggerID).Msg("failed to store webhook response")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// replayDuplicate claims key and reports whether the delivery was already
// answered. Deduplication errors are logged and the delivery is processed.
func (h *WebhookHandler) replayDuplicate(w http.ResponseWriter, r *http.Request, key string) bool {
	exists, cached, err := h.dedup.CheckAndSet(r.Context(), key, nil, h.cfg.DedupTTL)
	if err != nil {
		h.logger.Warn().Err(err).Str("key", key).Msg("webhook deduplication unavailable")
		return false
	}
	if !exists {
		return false
	}

	h.count("duplicate")
	if h.metrics != nil {
		h.metrics.DuplicateDeliveries.Inc()
	}

	if cached == nil || string(cached) == pendingMarker {
		writeJSON(w, http.StatusAccepted, dto.MessageResponse{Message: "event is already being processed"})
		return true
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Idempotency-Replay", "true")
	w.WriteHeader(http.StatusOK)
	w.Write(cached)
	return true
}

// readDelivery decodes a webhook delivery and answers the ones that carry no
// event: challenges are echoed, undecodable bodies and missing events get 400.
// It returns the kind of delivery it answered, or the event and "" when the
// caller still has to handle it.
func readDelivery(w http.ResponseWriter, r *http.Request) (*dto.WebhookEvent, string) {
	var req dto.WebhookRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return nil, "invalid"
	}

	if req.Challenge != "" {
		writeJSON(w, http.StatusOK, dto.ChallengeResponse{Challenge: req.Challenge})
		return nil, "challenge"
	}

	if req.Event == nil {
		writeError(w, http.StatusBadRequest, "payload is undefined", "")
		return nil, "invalid"
	}

	return req.Event, ""
}

func (h *WebhookHandler) count(kind string) {
	if h.metrics != nil {
		h.metrics.WebhookEvents.WithLabelValues(kind).Inc()
	}
}
