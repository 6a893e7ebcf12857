package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/boardbalance/internal/domain"
	"github.com/iho/boardbalance/internal/usecase"
)

// ReconcileRequest starts a manual reconciliation from one item.
type ReconcileRequest struct {
	Delta string `json:"delta" validate:"required,numeric"`
}

// ToUseCaseInput converts to use case input.
func (r *ReconcileRequest) ToUseCaseInput(boardID, itemID, deltaColumnID string) (usecase.ReconcileInput, error) {
	if err := validate.Struct(r); err != nil {
		return usecase.ReconcileInput{}, validationError(err)
	}

	delta, ok := domain.ParseNumeric(r.Delta)
	if !ok {
		return usecase.ReconcileInput{}, fmt.Errorf("%w: delta %q is out of range", domain.ErrInvalidEvent, r.Delta)
	}

	return usecase.ReconcileInput{
		Event: domain.ChangeEvent{
			BoardID:  boardID,
			ItemID:   itemID,
			ColumnID: deltaColumnID,
			Delta:    delta,
		},
		Trigger: domain.TriggerManual,
	}, nil
}

// BalanceUpdateResponse is one balance written back.
type BalanceUpdateResponse struct {
	ItemID  string          `json:"item_id"`
	Balance decimal.Decimal `json:"balance"`
}

// ReconcileResponse represents a reconciliation in API responses.
type ReconcileResponse struct {
	RunID         string                  `json:"run_id"`
	BoardID       string                  `json:"board_id"`
	ItemID        string                  `json:"item_id"`
	StartIndex    int                     `json:"start_index"`
	CarryIn       decimal.Decimal         `json:"carry_in"`
	ItemsUpdated  int                     `json:"items_updated"`
	FailedItemIDs []string                `json:"failed_item_ids,omitempty"`
	Updates       []BalanceUpdateResponse `json:"updates"`
}

// ReconcileFromResult converts a use case result to response.
func ReconcileFromResult(r *usecase.ReconcileResult) *ReconcileResponse {
	updates := make([]BalanceUpdateResponse, len(r.Updates))
	for i, u := range r.Updates {
		updates[i] = BalanceUpdateResponse{ItemID: u.ItemID, Balance: u.Balance}
	}

	return &ReconcileResponse{
		RunID:         r.RunID,
		BoardID:       r.BoardID,
		ItemID:        r.ItemID,
		StartIndex:    r.StartIndex,
		CarryIn:       r.CarryIn,
		ItemsUpdated:  r.ItemsUpdated,
		FailedItemIDs: r.FailedItemIDs,
		Updates:       updates,
	}
}

// RollupRequest overrides the configured rollup boards and columns.
type RollupRequest struct {
	SourceBoardID  FlexibleID `json:"source_board_id,omitempty"`
	SourceColumnID string     `json:"source_column_id,omitempty"`
	TargetBoardID  FlexibleID `json:"target_board_id,omitempty"`
	TargetColumnID string     `json:"target_column_id,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *RollupRequest) ToUseCaseInput() usecase.RollupInput {
	return usecase.RollupInput{
		SourceBoardID:  string(r.SourceBoardID),
		SourceColumnID: r.SourceColumnID,
		TargetBoardID:  string(r.TargetBoardID),
		TargetColumnID: r.TargetColumnID,
	}
}

// RollupResponse represents a rollup in API responses.
type RollupResponse struct {
	Total        decimal.Decimal `json:"total"`
	ItemsSummed  int             `json:"items_summed"`
	Defaulted    int             `json:"defaulted"`
	TargetItemID string          `json:"target_item_id"`
}

// RollupFromResult converts a use case result to response.
func RollupFromResult(r *usecase.RollupResult) *RollupResponse {
	return &RollupResponse{
		Total:        r.Total,
		ItemsSummed:  r.ItemsSummed,
		Defaulted:    r.Defaulted,
		TargetItemID: r.TargetItemID,
	}
}

// RunResponse represents a reconciliation run in API responses.
type RunResponse struct {
	ID           string          `json:"id"`
	BoardID      string          `json:"board_id"`
	ItemID       string          `json:"item_id"`
	Trigger      string          `json:"trigger"`
	Delta        decimal.Decimal `json:"delta"`
	CarryIn      decimal.Decimal `json:"carry_in"`
	StartIndex   int             `json:"start_index"`
	ItemsUpdated int             `json:"items_updated"`
	ItemsFailed  int             `json:"items_failed"`
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	DurationMS   int64           `json:"duration_ms"`
}

// RunFromDomain converts domain run to response.
func RunFromDomain(r *domain.ReconciliationRun) *RunResponse {
	return &RunResponse{
		ID:           r.ID,
		BoardID:      r.BoardID,
		ItemID:       r.ItemID,
		Trigger:      string(r.Trigger),
		Delta:        r.Delta,
		CarryIn:      r.CarryIn,
		StartIndex:   r.StartIndex,
		ItemsUpdated: r.ItemsUpdated,
		ItemsFailed:  r.ItemsFailed,
		Status:       string(r.Status),
		ErrorMessage: r.ErrorMessage,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		DurationMS:   r.Duration().Milliseconds(),
	}
}

// RunsFromDomain converts domain runs to responses.
func RunsFromDomain(runs []*domain.ReconciliationRun) []*RunResponse {
	result := make([]*RunResponse, len(runs))
	for i, r := range runs {
		result[i] = RunFromDomain(r)
	}
	return result
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
