package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Trigger identifies what started a reconciliation.
type Trigger string

const (
	TriggerWebhook Trigger = "webhook"
	TriggerManual  Trigger = "manual"
)

// ChangeEvent is the mutation that triggers a reconciliation: the delta of
// ItemID on BoardID changed to Delta.
type ChangeEvent struct {
	BoardID   string
	ItemID    string
	ColumnID  string
	Delta     decimal.Decimal
	TriggerID string
}

// Validate checks that the event names a board and an item.
func (e ChangeEvent) Validate() error {
	if strings.TrimSpace(e.BoardID) == "" {
		return fmt.Errorf("%w: board id is required", ErrInvalidEvent)
	}
	if strings.TrimSpace(e.ItemID) == "" {
		return fmt.Errorf("%w: item id is required", ErrInvalidEvent)
	}
	return nil
}

// Targets reports whether the event changed the given delta column and, when
// boardID is not empty, whether it happened on that board.
func (e ChangeEvent) Targets(boardID, deltaColumnID string) bool {
	if e.ColumnID != deltaColumnID {
		return false
	}
	return boardID == "" || e.BoardID == boardID
}
