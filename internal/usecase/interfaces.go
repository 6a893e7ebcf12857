package usecase

import (
	"context"
	"time"

	"github.com/iho/boardbalance/internal/domain"
)

// PageQuery selects one page of a board's items.
type PageQuery struct {
	BoardID   string
	Cursor    string
	Limit     int
	ColumnIDs []string
}

// ColumnUpdate is the set of column values to write on one item.
type ColumnUpdate struct {
	ItemID string
	Values map[string]string
}

// BoardSource reads boards from the board platform.
type BoardSource interface {
	// FetchPage returns one page of items in board order and the cursor of the
	// next page. It fails with domain.ErrMalformedResponse when the response
	// lacks the expected structure.
	FetchPage(ctx context.Context, query PageQuery) (*domain.Page, error)
}

// BoardWriter writes column values back to the board platform.
type BoardWriter interface {
	// ApplyUpdates attempts every update. When some of them fail it returns a
	// *domain.WriteError listing the failed items; successful writes stay.
	ApplyUpdates(ctx context.Context, boardID string, updates []ColumnUpdate) error
}

// BoardLocker serializes work on a board.
type BoardLocker interface {
	// Lock blocks until the board is exclusively held or ctx is done. It fails
	// with domain.ErrBoardBusy when the wait times out.
	Lock(ctx context.Context, boardID string) (unlock func(), err error)
}

// RunRepository defines data access for reconciliation runs.
type RunRepository interface {
	Create(ctx context.Context, run *domain.ReconciliationRun) error
	List(ctx context.Context, boardID string, limit, offset int) ([]*domain.ReconciliationRun, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Delete releases a key whose request did not complete.
	Delete(ctx context.Context, key string) error
}

// MetricsRecorder receives use case outcomes.
type MetricsRecorder interface {
	ObserveReconciliation(status domain.RunStatus, itemsWritten int, duration time.Duration)
	ObserveRollup(success bool, duration time.Duration)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) ObserveReconciliation(domain.RunStatus, int, time.Duration) {}

func (NopMetrics) ObserveRollup(bool, time.Duration) {}
