package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/boardbalance/internal/domain"
)

// RollupUseCase sums a column over one board and stores the total on the
// first item of another board.
type RollupUseCase struct {
	reader   *BoardReader
	writer   BoardWriter
	locker   BoardLocker
	metrics  MetricsRecorder
	logger   zerolog.Logger
	defaults RollupInput
}

// NewRollupUseCase creates a new RollupUseCase. defaults fills any field a
// caller leaves empty.
func NewRollupUseCase(
	reader *BoardReader,
	writer BoardWriter,
	locker BoardLocker,
	metrics MetricsRecorder,
	logger zerolog.Logger,
	defaults RollupInput,
) *RollupUseCase {
	if metrics == nil {
		metrics = NopMetrics{}
	}

	return &RollupUseCase{
		reader:   reader,
		writer:   writer,
		locker:   locker,
		metrics:  metrics,
		logger:   logger,
		defaults: defaults,
	}
}

// RollupInput represents input for a rollup.
type RollupInput struct {
	SourceBoardID  string
	SourceColumnID string
	TargetBoardID  string
	TargetColumnID string
}

func (in RollupInput) withDefaults(d RollupInput) RollupInput {
	if in.SourceBoardID == "" {
		in.SourceBoardID = d.SourceBoardID
	}
	if in.SourceColumnID == "" {
		in.SourceColumnID = d.SourceColumnID
	}
	if in.TargetBoardID == "" {
		in.TargetBoardID = d.TargetBoardID
	}
	if in.TargetColumnID == "" {
		in.TargetColumnID = d.TargetColumnID
	}
	return in
}

// Validate checks that every board and column is named.
func (in RollupInput) Validate() error {
	var missing []string
	if in.SourceBoardID == "" {
		missing = append(missing, "source board")
	}
	if in.SourceColumnID == "" {
		missing = append(missing, "source column")
	}
	if in.TargetBoardID == "" {
		missing = append(missing, "target board")
	}
	if in.TargetColumnID == "" {
		missing = append(missing, "target column")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrRollupNotConfigured, strings.Join(missing, ", "))
	}
	return nil
}

// RollupResult describes a completed rollup.
type RollupResult struct {
	Total        decimal.Decimal
	ItemsSummed  int
	Defaulted    int
	TargetItemID string
}

// Rollup computes the total and writes it.
func (uc *RollupUseCase) Rollup(ctx context.Context, input RollupInput) (*RollupResult, error) {
	start := time.Now()
	input = input.withDefaults(uc.defaults)

	result, err := uc.rollup(ctx, input)
	uc.metrics.ObserveRollup(err == nil, time.Since(start))
	if err != nil {
		uc.logger.Error().Err(err).
			Str("source_board_id", input.SourceBoardID).
			Str("target_board_id", input.TargetBoardID).
			Msg("rollup failed")
		return nil, err
	}

	uc.logger.Info().
		Str("source_board_id", input.SourceBoardID).
		Str("target_board_id", input.TargetBoardID).
		Str("target_item_id", result.TargetItemID).
		Str("total", result.Total.String()).
		Int("items_summed", result.ItemsSummed).
		Msg("rollup written")

	return result, nil
}

func (uc *RollupUseCase) rollup(ctx context.Context, input RollupInput) (*RollupResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	source, err := uc.reader.ListItems(ctx, input.SourceBoardID, input.SourceColumnID)
	if err != nil {
		return nil, err
	}
	total, defaulted := domain.SumColumn(source, input.SourceColumnID)

	unlock, err := uc.locker.Lock(ctx, input.TargetBoardID)
	if err != nil {
		return nil, fmt.Errorf("lock board %s: %w", input.TargetBoardID, err)
	}
	defer unlock()

	target, err := uc.reader.ListItems(ctx, input.TargetBoardID, input.TargetColumnID)
	if err != nil {
		return nil, err
	}
	if len(target) == 0 {
		return nil, fmt.Errorf("%w: board %s has no items", domain.ErrItemNotFound, input.TargetBoardID)
	}

	first := target[0].ID
	err = uc.writer.ApplyUpdates(ctx, input.TargetBoardID, []ColumnUpdate{{
		ItemID: first,
		Values: map[string]string{input.TargetColumnID: total.String()},
	}})
	if err != nil {
		return nil, err
	}

	return &RollupResult{
		Total:        total,
		ItemsSummed:  len(source),
		Defaulted:    defaulted,
		TargetItemID: first,
	}, nil
}
