package handler

import (
	"context"
	"sync"
	"time"

	"github.com/iho/boardbalance/internal/domain"
	"github.com/iho/boardbalance/internal/usecase"
)

type reconcilerStub struct {
	columns     domain.BalanceColumns
	reconcileFn func(ctx context.Context, input usecase.ReconcileInput) (*usecase.ReconcileResult, error)
	calls       int
}

func (s *reconcilerStub) Reconcile(ctx context.Context, input usecase.ReconcileInput) (*usecase.ReconcileResult, error) {
	s.calls++
	return s.reconcileFn(ctx, input)
}

func (s *reconcilerStub) Columns() domain.BalanceColumns {
	return s.columns
}

type rollupStub struct {
	rollupFn func(ctx context.Context, input usecase.RollupInput) (*usecase.RollupResult, error)
}

func (s *rollupStub) Rollup(ctx context.Context, input usecase.RollupInput) (*usecase.RollupResult, error) {
	return s.rollupFn(ctx, input)
}

type runListerStub struct {
	listFn func(ctx context.Context, input usecase.ListRunsInput) ([]*domain.ReconciliationRun, error)
}

func (s *runListerStub) ListRuns(ctx context.Context, input usecase.ListRunsInput) ([]*domain.ReconciliationRun, error) {
	return s.listFn(ctx, input)
}

type memoryIdempotencyStore struct {
	mu     sync.Mutex
	values map[string][]byte
	err    error
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{values: map[string][]byte{}}
}

func (s *memoryIdempotencyStore) CheckAndSet(_ context.Context, key string, response []byte, _ time.Duration) (bool, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return false, nil, s.err
	}
	if existing, ok := s.values[key]; ok {
		return true, existing, nil
	}
	if response == nil {
		response = []byte(pendingMarker)
	}
	s.values[key] = response
	return false, nil, nil
}

func (s *memoryIdempotencyStore) Update(_ context.Context, key string, response []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = response
	return nil
}

func (s *memoryIdempotencyStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
