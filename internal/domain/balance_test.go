package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

var testColumns = BalanceColumns{DeltaColumnID: "delta", BalanceColumnID: "balance"}

func testItem(id, delta, balance string) Item {
	cols := map[string]ColumnValue{}
	if delta != "" {
		cols["delta"] = ColumnValue{ID: "delta", Value: delta}
	}
	if balance != "" {
		cols["balance"] = ColumnValue{ID: "balance", Value: balance}
	}
	return Item{ID: id, Columns: cols}
}

func balancesOf(updates []BalanceUpdate) map[string]string {
	out := make(map[string]string, len(updates))
	for _, u := range updates {
		out[u.ItemID] = u.Balance.String()
	}
	return out
}

// applyUpdates returns a copy of items with the computed balances and the
// changed delta written back.
func applyUpdates(items []Item, changedID string, newDelta decimal.Decimal, updates []BalanceUpdate) []Item {
	byID := balancesOf(updates)
	out := make([]Item, len(items))
	for i, it := range items {
		cols := make(map[string]ColumnValue, len(it.Columns))
		for k, v := range it.Columns {
			cols[k] = v
		}
		if it.ID == changedID {
			cols["delta"] = ColumnValue{ID: "delta", Value: newDelta.String()}
		}
		if b, ok := byID[it.ID]; ok {
			cols["balance"] = ColumnValue{ID: "balance", Value: b}
		}
		out[i] = Item{ID: it.ID, Columns: cols}
	}
	return out
}

func TestComputeSuffix_MiddleItem(t *testing.T) {
	items := []Item{
		testItem("A", `"10"`, `"10"`),
		testItem("B", `"5"`, `"15"`),
		testItem("C", `"-3"`, `"12"`),
	}

	idx, ok := FindItem(items, "B")
	if !ok {
		t.Fatal("expected to find B")
	}

	s, err := ComputeSuffix(items, idx, decimal.NewFromInt(20), testColumns)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !s.CarryIn.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected carry-in 10, got %s", s.CarryIn)
	}
	if len(s.Updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(s.Updates))
	}
	got := balancesOf(s.Updates)
	if got["B"] != "30" || got["C"] != "27" {
		t.Fatalf("expected B=30 C=27, got %v", got)
	}
	if _, touched := got["A"]; touched {
		t.Fatalf("items before the changed one must not be updated")
	}
}

func TestComputeSuffix_FirstItemUsesZeroCarryIn(t *testing.T) {
	items := []Item{
		testItem("A", `"10"`, `"999"`),
		testItem("B", `"5"`, `"0"`),
	}

	s, err := ComputeSuffix(items, 0, decimal.NewFromInt(1), testColumns)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !s.CarryIn.IsZero() {
		t.Fatalf("expected zero carry-in, got %s", s.CarryIn)
	}
	got := balancesOf(s.Updates)
	if got["A"] != "1" || got["B"] != "6" {
		t.Fatalf("expected A=1 B=6, got %v", got)
	}
}

func TestComputeSuffix_TrustsEventDeltaForChangedItem(t *testing.T) {
	items := []Item{
		testItem("A", `"100"`, `"100"`),
	}

	s, err := ComputeSuffix(items, 0, decimal.NewFromInt(7), testColumns)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Updates[0].Balance.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("expected stored delta to be ignored, got %s", s.Updates[0].Balance)
	}
}

func TestComputeSuffix_MalformedValuesCountAsZero(t *testing.T) {
	items := []Item{
		testItem("A", `"10"`, `"not a number"`),
		testItem("B", `"5"`, ""),
		testItem("C", "", ""),
		testItem("D", `{"value":"x"}`, ""),
		testItem("E", `{"value": 4}`, ""),
	}

	s, err := ComputeSuffix(items, 1, decimal.NewFromInt(5), testColumns)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := balancesOf(s.Updates)
	want := map[string]string{"B": "5", "C": "5", "D": "5", "E": "9"}
	for id, w := range want {
		if got[id] != w {
			t.Fatalf("expected %s=%s, got %v", id, w, got)
		}
	}
	if len(s.Defaulted) != 3 {
		t.Fatalf("expected A, C and D to be defaulted, got %v", s.Defaulted)
	}
}

func TestComputeSuffix_OutOfRange(t *testing.T) {
	if _, err := ComputeSuffix(nil, 0, decimal.Zero, testColumns); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound on empty board, got %v", err)
	}

	items := []Item{testItem("A", `"1"`, `"1"`)}
	if _, err := ComputeSuffix(items, 1, decimal.Zero, testColumns); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound for index past the end, got %v", err)
	}
	if _, err := ComputeSuffix(items, -1, decimal.Zero, testColumns); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound for negative index, got %v", err)
	}
}

func TestComputeSuffix_InvariantAndIdempotence(t *testing.T) {
	deltas := []int64{3, -7, 0, 12, 5, -1, 9}
	for idx := range deltas {
		items := make([]Item, len(deltas))
		running := int64(0)
		for i, d := range deltas {
			running += d
			items[i] = testItem(string(rune('A'+i)), decimal.NewFromInt(d).String(), decimal.NewFromInt(running).String())
		}
		newDelta := decimal.NewFromInt(int64(100 + idx))

		first, err := ComputeSuffix(items, idx, newDelta, testColumns)
		if err != nil {
			t.Fatalf("idx %d: unexpected error: %v", idx, err)
		}
		after := applyUpdates(items, items[idx].ID, newDelta, first.Updates)

		prev := decimal.Zero
		if idx > 0 {
			prev, _ = NumericColumn(after[idx-1], "balance")
		}
		for i := idx; i < len(after); i++ {
			d, _ := NumericColumn(after[i], "delta")
			b, _ := NumericColumn(after[i], "balance")
			if !b.Equal(prev.Add(d)) {
				t.Fatalf("idx %d: invariant broken at %d: balance %s, prev %s, delta %s", idx, i, b, prev, d)
			}
			prev = b
		}

		second, err := ComputeSuffix(after, idx, newDelta, testColumns)
		if err != nil {
			t.Fatalf("idx %d: unexpected error on second run: %v", idx, err)
		}
		a, b := balancesOf(first.Updates), balancesOf(second.Updates)
		for id, v := range a {
			if b[id] != v {
				t.Fatalf("idx %d: second run drifted for %s: %s vs %s", idx, id, v, b[id])
			}
		}
	}
}

func TestSumColumn(t *testing.T) {
	items := []Item{
		testItem("A", `"10.5"`, ""),
		testItem("B", `"-0.5"`, ""),
		testItem("C", "", ""),
		testItem("D", `"oops"`, ""),
	}

	total, defaulted := SumColumn(items, "delta")
	if !total.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected total 10, got %s", total)
	}
	if defaulted != 2 {
		t.Fatalf("expected 2 defaulted values, got %d", defaulted)
	}
}

func TestFindItem(t *testing.T) {
	items := []Item{{ID: "1"}, {ID: "2"}}

	if idx, ok := FindItem(items, "2"); !ok || idx != 1 {
		t.Fatalf("expected index 1, got %d ok=%v", idx, ok)
	}
	if _, ok := FindItem(items, "3"); ok {
		t.Fatal("expected missing item")
	}
}

func TestComputeSuffix_OutOfBoundsStoredValuesCountAsZero(t *testing.T) {
	items := []Item{
		testItem("A", `"1"`, `"1e999999"`),
		testItem("B", `"2"`, ""),
		testItem("C", `{"value": 1e-999999}`, ""),
	}

	s, err := ComputeSuffix(items, 1, decimal.NewFromInt(2), testColumns)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := balancesOf(s.Updates)
	if got["B"] != "2" || got["C"] != "2" {
		t.Fatalf("expected oversized values to count as zero, got %v", got)
	}
	if len(s.Defaulted) != 2 {
		t.Fatalf("expected A and C to be defaulted, got %v", s.Defaulted)
	}
}
