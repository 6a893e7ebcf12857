package domain

// ColumnValue is the encoded value of one column on one item, as returned by
// the board platform. Value holds the raw JSON document (may be empty or "null").
type ColumnValue struct {
	ID    string
	Value string
	Text  string
}

// Item is one row of a board. Its position is its index in the board order.
type Item struct {
	ID      string
	Name    string
	Columns map[string]ColumnValue
}

// Column returns the value of the given column and whether it is present.
func (i Item) Column(columnID string) (ColumnValue, bool) {
	if i.Columns == nil {
		return ColumnValue{}, false
	}
	cv, ok := i.Columns[columnID]
	return cv, ok
}

// Page is one bounded slice of a board's items. An empty Cursor means the
// source has no further pages.
type Page struct {
	Items  []Item
	Cursor string
}

// FindItem returns the position of itemID in items.
func FindItem(items []Item, itemID string) (int, bool) {
	for i := range items {
		if items[i].ID == itemID {
			return i, true
		}
	}
	return -1, false
}
