package postgres

import (
	"context"

	"github.com/iho/boardbalance/internal/domain"
)

// NullRunRepository discards runs. It is used when no database is configured.
type NullRunRepository struct{}

// NewNullRunRepository creates a new NullRunRepository.
func NewNullRunRepository() *NullRunRepository {
	return &NullRunRepository{}
}

func (NullRunRepository) Create(context.Context, *domain.ReconciliationRun) error {
	return nil
}

func (NullRunRepository) List(context.Context, string, int, int) ([]*domain.ReconciliationRun, error) {
	return []*domain.ReconciliationRun{}, nil
}
