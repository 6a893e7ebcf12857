package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iho/boardbalance/internal/domain"
	"github.com/iho/boardbalance/internal/infrastructure/metrics"
)

// LocalBoardLocker serializes work per board within one process.
// It implements usecase.BoardLocker.
type LocalBoardLocker struct {
	mu      sync.Mutex
	boards  map[string]*boardSlot
	wait    time.Duration
	metrics *metrics.Metrics
}

type boardSlot struct {
	sem  chan struct{}
	refs int
}

// NewLocalBoardLocker creates a locker that waits at most wait for a busy
// board. A zero wait means wait until the caller's context is done. m may be nil.
func NewLocalBoardLocker(wait time.Duration, m *metrics.Metrics) *LocalBoardLocker {
	return &LocalBoardLocker{
		boards:  make(map[string]*boardSlot),
		wait:    wait,
		metrics: m,
	}
}

// Lock blocks until boardID is free.
func (l *LocalBoardLocker) Lock(ctx context.Context, boardID string) (func(), error) {
	start := time.Now()
	slot := l.acquireSlot(boardID)

	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	select {
	case slot.sem <- struct{}{}:
	case <-waitCtx.Done():
		l.releaseSlot(boardID, slot)
		l.observe(false, start)
		return nil, fmt.Errorf("%w: board %s: %v", domain.ErrBoardBusy, boardID, waitCtx.Err())
	}
	l.observe(true, start)

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.sem
			l.releaseSlot(boardID, slot)
		})
	}, nil
}

func (l *LocalBoardLocker) acquireSlot(boardID string) *boardSlot {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.boards[boardID]
	if !ok {
		slot = &boardSlot{sem: make(chan struct{}, 1)}
		l.boards[boardID] = slot
	}
	slot.refs++
	return slot
}

func (l *LocalBoardLocker) releaseSlot(boardID string, slot *boardSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot.refs--
	if slot.refs == 0 {
		delete(l.boards, boardID)
	}
}

func (l *LocalBoardLocker) observe(acquired bool, start time.Time) {
	if l.metrics != nil {
		l.metrics.ObserveLockWait(acquired, time.Since(start))
	}
}
