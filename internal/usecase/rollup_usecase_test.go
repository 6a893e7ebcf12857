package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/boardbalance/internal/domain"
	"github.com/iho/boardbalance/internal/usecase"
	"github.com/iho/boardbalance/internal/usecase/mocks"
)

// boards routes page reads and writes to one of several fake boards.
type boards map[string]*mocks.FakeBoard

func (b boards) FetchPage(ctx context.Context, q usecase.PageQuery) (*domain.Page, error) {
	board, ok := b[q.BoardID]
	if !ok {
		return &domain.Page{}, nil
	}
	return board.FetchPage(ctx, q)
}

func (b boards) ApplyUpdates(ctx context.Context, boardID string, updates []usecase.ColumnUpdate) error {
	board, ok := b[boardID]
	if !ok {
		return errors.New("unknown board")
	}
	return board.ApplyUpdates(ctx, boardID, updates)
}

func nfItem(id, value string) domain.Item {
	return mocks.NumericItem(id, "nf", value, "total", "")
}

func TestRollupUseCase_WritesTotalOnFirstTargetItem(t *testing.T) {
	source := mocks.NewFakeBoard("prev", nfItem("1", "100.50"), nfItem("2", "200"), nfItem("3", ""), nfItem("4", "x"))
	target := mocks.NewFakeBoard("curr", nfItem("10", ""), nfItem("11", ""))
	all := boards{"prev": source, "curr": target}

	uc := usecase.NewRollupUseCase(usecase.NewBoardReader(all, 2, zerolog.Nop()), all, mocks.NewFakeLocker(), nil, zerolog.Nop(),
		usecase.RollupInput{SourceBoardID: "prev", SourceColumnID: "nf", TargetBoardID: "curr", TargetColumnID: "total"})

	result, err := uc.Rollup(context.Background(), usecase.RollupInput{})
	require.NoError(t, err)

	assert.True(t, result.Total.Equal(decimal.RequireFromString("300.5")), "total %s", result.Total)
	assert.Equal(t, 4, result.ItemsSummed)
	assert.Equal(t, 2, result.Defaulted)
	assert.Equal(t, "10", result.TargetItemID)
	assert.Equal(t, "300.5", target.Column("10", "total"))
	assert.Equal(t, "", target.Column("11", "total"))
}

func TestRollupUseCase_InputOverridesDefaults(t *testing.T) {
	source := mocks.NewFakeBoard("other", nfItem("1", "7"))
	target := mocks.NewFakeBoard("curr", nfItem("10", ""))
	all := boards{"other": source, "curr": target}

	uc := usecase.NewRollupUseCase(usecase.NewBoardReader(all, 2, zerolog.Nop()), all, mocks.NewFakeLocker(), nil, zerolog.Nop(),
		usecase.RollupInput{SourceBoardID: "prev", SourceColumnID: "nf", TargetBoardID: "curr", TargetColumnID: "total"})

	result, err := uc.Rollup(context.Background(), usecase.RollupInput{SourceBoardID: "other"})
	require.NoError(t, err)
	assert.Equal(t, "7", result.Total.String())
}

func TestRollupUseCase_EmptyTargetBoard(t *testing.T) {
	source := mocks.NewFakeBoard("prev", nfItem("1", "7"))
	target := mocks.NewFakeBoard("curr")
	all := boards{"prev": source, "curr": target}

	uc := usecase.NewRollupUseCase(usecase.NewBoardReader(all, 2, zerolog.Nop()), all, mocks.NewFakeLocker(), nil, zerolog.Nop(),
		usecase.RollupInput{SourceBoardID: "prev", SourceColumnID: "nf", TargetBoardID: "curr", TargetColumnID: "total"})

	_, err := uc.Rollup(context.Background(), usecase.RollupInput{})
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
	assert.Equal(t, 0, target.WriteCalls)
}

func TestRollupUseCase_NotConfigured(t *testing.T) {
	all := boards{}
	uc := usecase.NewRollupUseCase(usecase.NewBoardReader(all, 2, zerolog.Nop()), all, mocks.NewFakeLocker(), nil, zerolog.Nop(),
		usecase.RollupInput{SourceBoardID: "prev"})

	_, err := uc.Rollup(context.Background(), usecase.RollupInput{})
	assert.ErrorIs(t, err, domain.ErrRollupNotConfigured)
}
