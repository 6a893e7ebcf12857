package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/boardbalance/internal/adapter/http/dto"
	"github.com/iho/boardbalance/internal/domain"
	"github.com/iho/boardbalance/internal/usecase"
)

func withURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestReconcileHandler_Success(t *testing.T) {
	var captured usecase.ReconcileInput
	stub := &reconcilerStub{
		columns: testColumns,
		reconcileFn: func(_ context.Context, input usecase.ReconcileInput) (*usecase.ReconcileResult, error) {
			captured = input
			return &usecase.ReconcileResult{
				RunID:        "run-1",
				BoardID:      "42",
				ItemID:       "7",
				StartIndex:   1,
				CarryIn:      decimal.NewFromInt(10),
				Updates:      []domain.BalanceUpdate{{ItemID: "7", Balance: decimal.NewFromInt(30)}},
				ItemsUpdated: 1,
			}, nil
		},
	}
	h := NewReconcileHandler(stub)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/boards/42/items/7/reconcile", strings.NewReader(`{"delta": "20"}`))
	req = withURLParams(req, map[string]string{"boardID": "42", "itemID": "7"})
	rec := httptest.NewRecorder()

	h.Reconcile(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "delta", captured.Event.ColumnID)
	assert.Equal(t, domain.TriggerManual, captured.Trigger)
	assert.True(t, captured.Event.Delta.Equal(decimal.NewFromInt(20)))

	var resp dto.ReconcileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, 1, resp.StartIndex)
	require.Len(t, resp.Updates, 1)
	assert.True(t, resp.Updates[0].Balance.Equal(decimal.NewFromInt(30)))
}

func TestReconcileHandler_InvalidDelta(t *testing.T) {
	stub := &reconcilerStub{columns: testColumns}
	h := NewReconcileHandler(stub)

	for _, body := range []string{`{bad`, `{}`, `{"delta": "twenty"}`} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req = withURLParams(req, map[string]string{"boardID": "42", "itemID": "7"})
		rec := httptest.NewRecorder()

		h.Reconcile(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Zero(t, stub.calls)
}

func TestReconcileHandler_PartialWriteReportsResult(t *testing.T) {
	stub := &reconcilerStub{
		columns: testColumns,
		reconcileFn: func(context.Context, usecase.ReconcileInput) (*usecase.ReconcileResult, error) {
			return &usecase.ReconcileResult{
				RunID:         "run-1",
				ItemsUpdated:  1,
				FailedItemIDs: []string{"8"},
			}, &domain.WriteError{FailedItemIDs: []string{"8"}}
		},
	}
	h := NewReconcileHandler(stub)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"delta": "1"}`))
	req = withURLParams(req, map[string]string{"boardID": "42", "itemID": "7"})
	rec := httptest.NewRecorder()

	h.Reconcile(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	var resp dto.ReconcileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"8"}, resp.FailedItemIDs)
}

func TestReconcileHandler_ItemNotFound(t *testing.T) {
	stub := &reconcilerStub{
		columns: testColumns,
		reconcileFn: func(context.Context, usecase.ReconcileInput) (*usecase.ReconcileResult, error) {
			return nil, domain.ErrItemNotFound
		},
	}
	h := NewReconcileHandler(stub)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"delta": "1"}`))
	req = withURLParams(req, map[string]string{"boardID": "42", "itemID": "7"})
	rec := httptest.NewRecorder()

	h.Reconcile(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRollupHandler(t *testing.T) {
	var captured usecase.RollupInput
	h := NewRollupHandler(&rollupStub{
		rollupFn: func(_ context.Context, input usecase.RollupInput) (*usecase.RollupResult, error) {
			captured = input
			if input.TargetBoardID == "missing" {
				return nil, domain.ErrRollupNotConfigured
			}
			return &usecase.RollupResult{Total: decimal.RequireFromString("12.5"), ItemsSummed: 3, TargetItemID: "1"}, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rollups", nil)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, usecase.RollupInput{}, captured)
	var resp dto.RollupResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Total.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, 3, resp.ItemsSummed)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/rollups", strings.NewReader(`{"source_board_id": 5, "target_board_id": "missing"}`))
	rec = httptest.NewRecorder()
	h.Create(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "5", captured.SourceBoardID)
}

func TestRollupHandler_RejectsWebhookBodyOnAPI(t *testing.T) {
	calls := 0
	h := NewRollupHandler(&rollupStub{
		rollupFn: func(context.Context, usecase.RollupInput) (*usecase.RollupResult, error) {
			calls++
			return &usecase.RollupResult{}, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rollups", strings.NewReader(`{"challenge":"x"}`))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, calls)
}

func TestRollupHandler_Webhook(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		rollupErr error
		wantCode  int
		wantBody  string
		wantCalls int
	}{
		{
			name:     "challenge is echoed",
			body:     `{"challenge":"abc123"}`,
			wantCode: http.StatusOK,
			wantBody: `{"challenge":"abc123"}`,
		},
		{
			name:     "missing event",
			body:     `{}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "broken json",
			body:     `{"event":`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:      "event runs configured rollup",
			body:      `{"event":{"boardId":1,"pulseId":2,"columnId":"numbers","value":{"value":3}}}`,
			wantCode:  http.StatusOK,
			wantCalls: 1,
		},
		{
			name:      "unconfigured rollup",
			body:      `{"event":{"boardId":1}}`,
			rollupErr: domain.ErrRollupNotConfigured,
			wantCode:  http.StatusBadRequest,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			var captured usecase.RollupInput
			h := NewRollupHandler(&rollupStub{
				rollupFn: func(_ context.Context, input usecase.RollupInput) (*usecase.RollupResult, error) {
					calls++
					captured = input
					if tt.rollupErr != nil {
						return nil, tt.rollupErr
					}
					return &usecase.RollupResult{Total: decimal.NewFromInt(9), ItemsSummed: 2, TargetItemID: "10"}, nil
				},
			})

			req := httptest.NewRequest(http.MethodPost, "/webhook/rollup", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.HandleWebhook(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
			if tt.wantCalls > 0 {
				assert.Equal(t, usecase.RollupInput{}, captured, "webhook rollups use the configured boards")
			}
			if tt.wantCode == http.StatusOK && tt.wantCalls > 0 {
				var resp dto.RollupResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, "10", resp.TargetItemID)
			}
		})
	}
}

func TestRunHandler_List(t *testing.T) {
	var captured usecase.ListRunsInput
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	h := NewRunHandler(&runListerStub{
		listFn: func(_ context.Context, input usecase.ListRunsInput) ([]*domain.ReconciliationRun, error) {
			captured = input
			return []*domain.ReconciliationRun{{
				ID:         "run-1",
				BoardID:    "42",
				Trigger:    domain.TriggerWebhook,
				Status:     domain.RunStatusSucceeded,
				StartedAt:  started,
				FinishedAt: started.Add(1500 * time.Millisecond),
			}}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs?board_id=42&limit=5&offset=10", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, usecase.ListRunsInput{BoardID: "42", Limit: 5, Offset: 10}, captured)

	var resp []dto.RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "webhook", resp[0].Trigger)
	assert.Equal(t, int64(1500), resp[0].DurationMS)
}

func TestRunHandler_ListError(t *testing.T) {
	h := NewRunHandler(&runListerStub{
		listFn: func(context.Context, usecase.ListRunsInput) ([]*domain.ReconciliationRun, error) {
			return nil, errors.New("db down")
		},
	})

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	healthy := NewHealthHandler(
		HealthCheck{Name: "postgres", Ping: func(context.Context) error { return nil }},
		HealthCheck{Name: "redis", Ping: func(context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	healthy.Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ready", "postgres": "ok", "redis": "ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	healthy.Liveness(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	unhealthy := NewHealthHandler(
		HealthCheck{Name: "redis", Ping: func(context.Context) error { return errors.New("connection refused") }},
	)
	rec = httptest.NewRecorder()
	unhealthy.Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "redis unhealthy", resp.Error)

	rec = httptest.NewRecorder()
	NewHealthHandler().Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestParseIntQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/runs?limit=50", nil)
	if got := parseIntQuery(req, "limit", 10); got != 50 {
		t.Fatalf("expected limit=50, got %d", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/runs?limit=invalid", nil)
	if got := parseIntQuery(req, "limit", 10); got != 10 {
		t.Fatalf("expected fallback to default, got %d", got)
	}

	req.URL = &url.URL{RawQuery: ""}
	if got := parseIntQuery(req, "limit", 25); got != 25 {
		t.Fatalf("expected default when missing, got %d", got)
	}
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"item not found", domain.ErrItemNotFound, http.StatusNotFound},
		{"wrapped item not found", errors.Join(errors.New("ctx"), domain.ErrItemNotFound), http.StatusNotFound},
		{"board busy", domain.ErrBoardBusy, http.StatusServiceUnavailable},
		{"invalid event", domain.ErrInvalidEvent, http.StatusBadRequest},
		{"rollup not configured", domain.ErrRollupNotConfigured, http.StatusBadRequest},
		{"invalid signature", domain.ErrInvalidSignature, http.StatusUnauthorized},
		{"write failure", &domain.WriteError{}, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapDomainError(tt.err); got != tt.expected {
				t.Fatalf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}
