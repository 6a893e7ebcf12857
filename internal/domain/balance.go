package domain

import (
	"github.com/shopspring/decimal"
)

// BalanceColumns names the input and output columns of the running balance.
type BalanceColumns struct {
	DeltaColumnID   string
	BalanceColumnID string
}

// BalanceUpdate is the balance to write for one item.
type BalanceUpdate struct {
	ItemID  string
	Balance decimal.Decimal
}

// Suffix is the recomputed tail of a board, starting at the changed item.
type Suffix struct {
	StartIndex int
	CarryIn    decimal.Decimal
	Updates    []BalanceUpdate
	// Defaulted lists items whose stored value was absent or unparsable
	// and was counted as zero.
	Defaulted []string
}

// ComputeSuffix recomputes balances for items[idx:]. The changed item uses
// newDelta; every later item uses its stored delta. The carry-in is the stored
// balance of items[idx-1], or zero for the first item. Every visited item gets
// an update, whether or not its balance changed.
func ComputeSuffix(items []Item, idx int, newDelta decimal.Decimal, cols BalanceColumns) (Suffix, error) {
	if idx < 0 || idx >= len(items) {
		return Suffix{}, ErrItemNotFound
	}

	s := Suffix{
		StartIndex: idx,
		CarryIn:    decimal.Zero,
		Updates:    make([]BalanceUpdate, 0, len(items)-idx),
	}

	if idx > 0 {
		prev := items[idx-1]
		carry, ok := NumericColumn(prev, cols.BalanceColumnID)
		if !ok {
			s.Defaulted = append(s.Defaulted, prev.ID)
		}
		s.CarryIn = carry
	}

	running := s.CarryIn
	for i := idx; i < len(items); i++ {
		delta := newDelta
		if i != idx {
			var ok bool
			delta, ok = NumericColumn(items[i], cols.DeltaColumnID)
			if !ok {
				s.Defaulted = append(s.Defaulted, items[i].ID)
			}
		}
		running = running.Add(delta)
		s.Updates = append(s.Updates, BalanceUpdate{ItemID: items[i].ID, Balance: running})
	}

	return s, nil
}

// SumColumn adds up a numeric column over all items. Unparsable values count
// as zero; the second result is the number of such values.
func SumColumn(items []Item, columnID string) (decimal.Decimal, int) {
	total := decimal.Zero
	defaulted := 0
	for _, item := range items {
		v, ok := NumericColumn(item, columnID)
		if !ok {
			defaulted++
		}
		total = total.Add(v)
	}
	return total, defaulted
}
