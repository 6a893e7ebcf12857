package monday

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iho/boardbalance/internal/domain"
	"github.com/iho/boardbalance/internal/usecase"
)

const (
	opFetchPage    = "items_page"
	opUpdateValues = "change_column_values"
)

type itemsPageData struct {
	Boards []struct {
		ID        string `json:"id"`
		ItemsPage *struct {
			Cursor *string `json:"cursor"`
			Items  []struct {
				ID           string `json:"id"`
				Name         string `json:"name"`
				ColumnValues []struct {
					ID    string  `json:"id"`
					Value *string `json:"value"`
					Text  *string `json:"text"`
				} `json:"column_values"`
			} `json:"items"`
		} `json:"items_page"`
	} `json:"boards"`
}

// FetchPage implements usecase.BoardSource.
func (c *Client) FetchPage(ctx context.Context, query usecase.PageQuery) (*domain.Page, error) {
	vars := map[string]any{
		"boardIds": []string{query.BoardID},
		"limit":    query.Limit,
	}
	if query.Cursor != "" {
		vars["cursor"] = query.Cursor
	}
	if len(query.ColumnIDs) > 0 {
		vars["columnIds"] = query.ColumnIDs
	}

	resp, err := c.do(ctx, opFetchPage, graphQLRequest{Query: itemsPageQuery, Variables: vars})
	if err != nil {
		return nil, err
	}

	var data itemsPageData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: decode items page: %v", domain.ErrMalformedResponse, err)
	}
	if len(data.Boards) == 0 {
		return nil, fmt.Errorf("%w: board %s not returned", domain.ErrMalformedResponse, query.BoardID)
	}

	itemsPage := data.Boards[0].ItemsPage
	if itemsPage == nil {
		return nil, fmt.Errorf("%w: board %s has no items page", domain.ErrMalformedResponse, query.BoardID)
	}

	page := &domain.Page{Items: make([]domain.Item, 0, len(itemsPage.Items))}
	if itemsPage.Cursor != nil {
		page.Cursor = *itemsPage.Cursor
	}

	for _, it := range itemsPage.Items {
		item := domain.Item{
			ID:      it.ID,
			Name:    it.Name,
			Columns: make(map[string]domain.ColumnValue, len(it.ColumnValues)),
		}
		for _, cv := range it.ColumnValues {
			item.Columns[cv.ID] = domain.ColumnValue{
				ID:    cv.ID,
				Value: deref(cv.Value),
				Text:  deref(cv.Text),
			}
		}
		page.Items = append(page.Items, item)
	}

	if c.metrics != nil {
		c.metrics.PagesRead.Inc()
	}

	return page, nil
}

// ApplyUpdates implements usecase.BoardWriter. Updates are sent in batches of
// aliased mutations. Every batch is attempted even after a failure.
func (c *Client) ApplyUpdates(ctx context.Context, boardID string, updates []usecase.ColumnUpdate) error {
	var (
		failed []string
		cause  error
	)

	for start := 0; start < len(updates); start += c.batchSize {
		end := min(start+c.batchSize, len(updates))
		batch := updates[start:end]

		batchFailed, err := c.applyBatch(ctx, boardID, batch)
		if len(batchFailed) == 0 {
			continue
		}

		failed = append(failed, batchFailed...)
		if cause == nil {
			cause = err
		}
		c.logger.Warn().
			Err(err).
			Str("board_id", boardID).
			Int("batch_start", start).
			Int("failed", len(batchFailed)).
			Msg("balance write batch failed")
	}

	if len(failed) > 0 {
		return &domain.WriteError{FailedItemIDs: failed, Cause: cause}
	}
	return nil
}

// applyBatch writes one batch and returns the IDs of items that were not written.
func (c *Client) applyBatch(ctx context.Context, boardID string, batch []usecase.ColumnUpdate) ([]string, error) {
	vars := map[string]any{"boardId": boardID}
	for i, u := range batch {
		encoded, err := json.Marshal(u.Values)
		if err != nil {
			return itemIDs(batch), fmt.Errorf("encode column values for item %s: %w", u.ItemID, err)
		}
		vars[fmt.Sprintf("item%d", i)] = u.ItemID
		vars[fmt.Sprintf("values%d", i)] = string(encoded)
	}

	resp, err := c.do(ctx, opUpdateValues, graphQLRequest{
		Query:     buildUpdateMutation(len(batch)),
		Variables: vars,
	})
	if err != nil {
		return itemIDs(batch), err
	}

	var results map[string]json.RawMessage
	if err := json.Unmarshal(resp.Data, &results); err != nil {
		return itemIDs(batch), fmt.Errorf("%w: decode mutation result: %v", domain.ErrMalformedResponse, err)
	}

	var failed []string
	for i, u := range batch {
		raw, ok := results[updateAlias(i)]
		if !ok || len(raw) == 0 || string(raw) == "null" {
			failed = append(failed, u.ItemID)
		}
	}
	if len(failed) == 0 {
		return nil, nil
	}

	var batchErr error = errors.New("update returned no result")
	if apiErr := resp.apiError(); apiErr != nil {
		batchErr = apiErr
	}
	return failed, batchErr
}

func itemIDs(updates []usecase.ColumnUpdate) []string {
	ids := make([]string, len(updates))
	for i, u := range updates {
		ids[i] = u.ItemID
	}
	return ids
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
