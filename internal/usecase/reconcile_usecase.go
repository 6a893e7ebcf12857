package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/boardbalance/internal/domain"
)

// ReconcileConfig holds the reconciler settings.
type ReconcileConfig struct {
	Columns domain.BalanceColumns
	Timeout time.Duration
}

// ReconcileUseCase recomputes the running balance of a board from a changed
// item to the end and writes it back.
type ReconcileUseCase struct {
	reader  *BoardReader
	writer  BoardWriter
	locker  BoardLocker
	runs    RunRepository
	idGen   IDGenerator
	metrics MetricsRecorder
	logger  zerolog.Logger
	cfg     ReconcileConfig
}

// NewReconcileUseCase creates a new ReconcileUseCase.
func NewReconcileUseCase(
	reader *BoardReader,
	writer BoardWriter,
	locker BoardLocker,
	runs RunRepository,
	idGen IDGenerator,
	metrics MetricsRecorder,
	logger zerolog.Logger,
	cfg ReconcileConfig,
) *ReconcileUseCase {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultReconcileTimeout
	}

	return &ReconcileUseCase{
		reader:  reader,
		writer:  writer,
		locker:  locker,
		runs:    runs,
		idGen:   idGen,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
	}
}

// ReconcileInput represents input for a reconciliation.
type ReconcileInput struct {
	Event   domain.ChangeEvent
	Trigger domain.Trigger
}

// ReconcileResult describes what a reconciliation wrote.
type ReconcileResult struct {
	RunID         string
	BoardID       string
	ItemID        string
	StartIndex    int
	CarryIn       decimal.Decimal
	Updates       []domain.BalanceUpdate
	ItemsUpdated  int
	FailedItemIDs []string
}

// Columns returns the configured delta and balance columns.
func (uc *ReconcileUseCase) Columns() domain.BalanceColumns {
	return uc.cfg.Columns
}

// Reconcile restores Balance[i] = Balance[i-1] + Delta[i] for the changed item
// and every item after it. The event's delta is trusted for the changed item.
// Write failures are reported through a *domain.WriteError together with a
// result describing what was written; nothing is rolled back.
func (uc *ReconcileUseCase) Reconcile(ctx context.Context, input ReconcileInput) (*ReconcileResult, error) {
	ev := input.Event
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, uc.cfg.Timeout)
	defer cancel()

	run := &domain.ReconciliationRun{
		ID:        uc.idGen.Generate(),
		BoardID:   ev.BoardID,
		ItemID:    ev.ItemID,
		Trigger:   input.Trigger,
		Delta:     ev.Delta,
		CarryIn:   decimal.Zero,
		StartedAt: time.Now().UTC(),
	}

	result, err := uc.reconcile(ctx, ev, run)

	updated, failed := 0, 0
	if result != nil {
		updated, failed = result.ItemsUpdated, len(result.FailedItemIDs)
	}
	run.Finish(time.Now().UTC(), updated, failed, err)
	uc.record(context.WithoutCancel(ctx), run)
	uc.metrics.ObserveReconciliation(run.Status, updated, run.Duration())

	logEvent := uc.logger.Info()
	if err != nil {
		logEvent = uc.logger.Error().Err(err)
	}
	logEvent.
		Str("run_id", run.ID).
		Str("board_id", ev.BoardID).
		Str("item_id", ev.ItemID).
		Str("trigger", string(input.Trigger)).
		Str("status", string(run.Status)).
		Int("items_updated", updated).
		Int("items_failed", failed).
		Dur("duration", run.Duration()).
		Msg("reconciliation finished")

	return result, err
}

func (uc *ReconcileUseCase) reconcile(ctx context.Context, ev domain.ChangeEvent, run *domain.ReconciliationRun) (*ReconcileResult, error) {
	unlock, err := uc.locker.Lock(ctx, ev.BoardID)
	if err != nil {
		return nil, fmt.Errorf("lock board %s: %w", ev.BoardID, err)
	}
	defer unlock()

	cols := uc.cfg.Columns
	items, err := uc.reader.ListItems(ctx, ev.BoardID, cols.DeltaColumnID, cols.BalanceColumnID)
	if err != nil {
		return nil, err
	}

	idx, ok := domain.FindItem(items, ev.ItemID)
	if !ok {
		return nil, fmt.Errorf("%w: item %s on board %s", domain.ErrItemNotFound, ev.ItemID, ev.BoardID)
	}

	suffix, err := domain.ComputeSuffix(items, idx, ev.Delta, cols)
	if err != nil {
		return nil, err
	}
	run.StartIndex = suffix.StartIndex
	run.CarryIn = suffix.CarryIn

	if len(suffix.Defaulted) > 0 {
		uc.logger.Debug().
			Str("board_id", ev.BoardID).
			Strs("item_ids", suffix.Defaulted).
			Msg("unparsable column values counted as zero")
	}

	result := &ReconcileResult{
		RunID:      run.ID,
		BoardID:    ev.BoardID,
		ItemID:     ev.ItemID,
		StartIndex: suffix.StartIndex,
		CarryIn:    suffix.CarryIn,
		Updates:    suffix.Updates,
	}

	updates := make([]ColumnUpdate, len(suffix.Updates))
	for i, u := range suffix.Updates {
		updates[i] = ColumnUpdate{
			ItemID: u.ItemID,
			Values: map[string]string{cols.BalanceColumnID: u.Balance.String()},
		}
	}

	if err := uc.writer.ApplyUpdates(ctx, ev.BoardID, updates); err != nil {
		var writeErr *domain.WriteError
		if !errors.As(err, &writeErr) {
			writeErr = &domain.WriteError{FailedItemIDs: itemIDs(updates), Cause: err}
		}
		result.FailedItemIDs = writeErr.FailedItemIDs
		result.ItemsUpdated = len(updates) - len(writeErr.FailedItemIDs)
		return result, writeErr
	}

	result.ItemsUpdated = len(updates)
	return result, nil
}

func (uc *ReconcileUseCase) record(ctx context.Context, run *domain.ReconciliationRun) {
	if err := uc.runs.Create(ctx, run); err != nil {
		uc.logger.Warn().Err(err).Str("run_id", run.ID).Msg("failed to record reconciliation run")
	}
}

func itemIDs(updates []ColumnUpdate) []string {
	ids := make([]string, len(updates))
	for i, u := range updates {
		ids[i] = u.ItemID
	}
	return ids
}
