package mocks

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/iho/boardbalance/internal/domain"
	"github.com/iho/boardbalance/internal/usecase"
)

// FakeBoard is an in-memory board serving pages and accepting writes.
type FakeBoard struct {
	mu sync.Mutex

	BoardID string
	Items   []domain.Item

	// FailItems makes writes to these item ids fail.
	FailItems map[string]bool

	PageCalls  int
	WriteCalls int
	Written    []usecase.ColumnUpdate
}

// NewFakeBoard creates a board with the given items.
func NewFakeBoard(boardID string, items ...domain.Item) *FakeBoard {
	return &FakeBoard{
		BoardID:   boardID,
		Items:     items,
		FailItems: make(map[string]bool),
	}
}

// NumericItem builds an item whose delta and balance columns hold plain
// numeric strings. Empty strings leave the column absent.
func NumericItem(id, deltaColumn, delta, balanceColumn, balance string) domain.Item {
	cols := map[string]domain.ColumnValue{}
	if delta != "" {
		cols[deltaColumn] = domain.ColumnValue{ID: deltaColumn, Value: strconv.Quote(delta), Text: delta}
	}
	if balance != "" {
		cols[balanceColumn] = domain.ColumnValue{ID: balanceColumn, Value: strconv.Quote(balance), Text: balance}
	}
	return domain.Item{ID: id, Name: "item " + id, Columns: cols}
}

// FetchPage serves items in order; the cursor is the offset of the next page.
func (b *FakeBoard) FetchPage(ctx context.Context, query usecase.PageQuery) (*domain.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.PageCalls++
	if query.BoardID != b.BoardID {
		return &domain.Page{}, nil
	}

	start := 0
	if query.Cursor != "" {
		var err error
		start, err = strconv.Atoi(query.Cursor)
		if err != nil {
			return nil, domain.ErrMalformedResponse
		}
	}
	end := start + query.Limit
	if end > len(b.Items) {
		end = len(b.Items)
	}

	page := &domain.Page{Items: make([]domain.Item, 0, end-start)}
	for _, it := range b.Items[start:end] {
		page.Items = append(page.Items, copyItem(it))
	}
	if end < len(b.Items) {
		page.Cursor = strconv.Itoa(end)
	}
	return page, nil
}

// ApplyUpdates writes column values into the stored items.
func (b *FakeBoard) ApplyUpdates(ctx context.Context, boardID string, updates []usecase.ColumnUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.WriteCalls++
	var failed []string
	for _, u := range updates {
		if b.FailItems[u.ItemID] {
			failed = append(failed, u.ItemID)
			continue
		}
		idx, ok := domain.FindItem(b.Items, u.ItemID)
		if !ok {
			failed = append(failed, u.ItemID)
			continue
		}
		for col, val := range u.Values {
			if b.Items[idx].Columns == nil {
				b.Items[idx].Columns = map[string]domain.ColumnValue{}
			}
			b.Items[idx].Columns[col] = domain.ColumnValue{ID: col, Value: strconv.Quote(val), Text: val}
		}
		b.Written = append(b.Written, u)
	}

	if len(failed) > 0 {
		return &domain.WriteError{FailedItemIDs: failed}
	}
	return nil
}

// SetColumn overwrites one column value of an item.
func (b *FakeBoard) SetColumn(itemID, columnID, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx, ok := domain.FindItem(b.Items, itemID)
	if !ok {
		return
	}
	b.Items[idx].Columns[columnID] = domain.ColumnValue{ID: columnID, Value: strconv.Quote(value), Text: value}
}

// Column returns the text of a column of an item.
func (b *FakeBoard) Column(itemID, columnID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx, ok := domain.FindItem(b.Items, itemID)
	if !ok {
		return ""
	}
	return b.Items[idx].Columns[columnID].Text
}

func copyItem(it domain.Item) domain.Item {
	cols := make(map[string]domain.ColumnValue, len(it.Columns))
	for k, v := range it.Columns {
		cols[k] = v
	}
	return domain.Item{ID: it.ID, Name: it.Name, Columns: cols}
}

// FakeLocker is an in-process BoardLocker that counts acquisitions.
type FakeLocker struct {
	mu    sync.Mutex
	held  map[string]bool
	Locks int

	LockFunc func(ctx context.Context, boardID string) (func(), error)
}

// NewFakeLocker creates a new FakeLocker.
func NewFakeLocker() *FakeLocker {
	return &FakeLocker{held: make(map[string]bool)}
}

func (l *FakeLocker) Lock(ctx context.Context, boardID string) (func(), error) {
	if l.LockFunc != nil {
		return l.LockFunc(ctx, boardID)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[boardID] {
		return nil, domain.ErrBoardBusy
	}
	l.held[boardID] = true
	l.Locks++
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, boardID)
	}, nil
}

// Held reports whether the board is currently locked.
func (l *FakeLocker) Held(boardID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[boardID]
}

// FakeRunRepository keeps runs in memory.
type FakeRunRepository struct {
	mu   sync.Mutex
	Runs []*domain.ReconciliationRun

	CreateFunc func(ctx context.Context, run *domain.ReconciliationRun) error
}

// NewFakeRunRepository creates a new FakeRunRepository.
func NewFakeRunRepository() *FakeRunRepository {
	return &FakeRunRepository{}
}

func (r *FakeRunRepository) Create(ctx context.Context, run *domain.ReconciliationRun) error {
	if r.CreateFunc != nil {
		return r.CreateFunc(ctx, run)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Runs = append(r.Runs, run)
	return nil
}

func (r *FakeRunRepository) List(ctx context.Context, boardID string, limit, offset int) ([]*domain.ReconciliationRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.ReconciliationRun
	for _, run := range r.Runs {
		if boardID == "" || run.BoardID == boardID {
			out = append(out, run)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })

	if offset >= len(out) {
		return []*domain.ReconciliationRun{}, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// SequenceIDGenerator returns run-1, run-2, ...
type SequenceIDGenerator struct {
	mu sync.Mutex
	n  int
}

func (g *SequenceIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return "run-" + strconv.Itoa(g.n)
}
