package usecase

import (
	"context"

	"github.com/iho/boardbalance/internal/domain"
)

// RunUseCase exposes the reconciliation history.
type RunUseCase struct {
	runs RunRepository
}

// NewRunUseCase creates a new RunUseCase.
func NewRunUseCase(runs RunRepository) *RunUseCase {
	return &RunUseCase{runs: runs}
}

// ListRunsInput represents input for listing runs.
type ListRunsInput struct {
	BoardID string
	Limit   int
	Offset  int
}

// ListRuns lists runs, newest first. An empty BoardID lists all boards.
func (uc *RunUseCase) ListRuns(ctx context.Context, input ListRunsInput) ([]*domain.ReconciliationRun, error) {
	limit, offset := domain.ValidatePagination(input.Limit, input.Offset)
	return uc.runs.List(ctx, input.BoardID, limit, offset)
}
