package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iho/boardbalance/internal/domain"
)

// BoardReader loads the full ordered item list of a board, page by page.
type BoardReader struct {
	source   BoardSource
	pageSize int
	logger   zerolog.Logger
}

// NewBoardReader creates a new BoardReader. Page sizes outside 1..MaxPageSize
// fall back to DefaultPageSize.
func NewBoardReader(source BoardSource, pageSize int, logger zerolog.Logger) *BoardReader {
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}

	return &BoardReader{
		source:   source,
		pageSize: pageSize,
		logger:   logger,
	}
}

// ListItems returns every item of the board in source order. Only the given
// columns are materialized; with none, all columns are. Any page failure
// aborts the read.
func (r *BoardReader) ListItems(ctx context.Context, boardID string, columnIDs ...string) ([]domain.Item, error) {
	var (
		items  []domain.Item
		cursor string
		pages  int
		seen   = make(map[string]struct{})
	)

	for {
		page, err := r.source.FetchPage(ctx, PageQuery{
			BoardID:   boardID,
			Cursor:    cursor,
			Limit:     r.pageSize,
			ColumnIDs: columnIDs,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch page %d of board %s: %w", pages+1, boardID, err)
		}
		if page == nil {
			return nil, fmt.Errorf("fetch page %d of board %s: %w: empty page", pages+1, boardID, domain.ErrMalformedResponse)
		}
		pages++

		items = append(items, page.Items...)

		if page.Cursor == "" {
			break
		}
		if _, dup := seen[page.Cursor]; dup {
			return nil, fmt.Errorf("board %s: %w: cursor repeated after %d pages", boardID, domain.ErrMalformedResponse, pages)
		}
		seen[page.Cursor] = struct{}{}
		cursor = page.Cursor
	}

	r.logger.Debug().
		Str("board_id", boardID).
		Int("pages", pages).
		Int("items", len(items)).
		Msg("board loaded")

	return items, nil
}
