package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/boardbalance/internal/domain"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const insertRunSQL = `
	INSERT INTO reconciliation_runs (
		id, board_id, item_id, trigger_kind, delta, carry_in, start_index,
		items_updated, items_failed, status, error_message, started_at, finished_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

const listRunsSQL = `
	SELECT id, board_id, item_id, trigger_kind, delta::text, carry_in::text, start_index,
	       items_updated, items_failed, status, error_message, started_at, finished_at
	FROM reconciliation_runs
	WHERE ($1 = '' OR board_id = $1)
	ORDER BY started_at DESC, id DESC
	LIMIT $2 OFFSET $3
`

// RunRepository implements usecase.RunRepository.
type RunRepository struct {
	db      querier
	retrier *Retrier
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(pool *pgxpool.Pool, retrier *Retrier) *RunRepository {
	return newRunRepository(pool, retrier)
}

func newRunRepository(db querier, retrier *Retrier) *RunRepository {
	return &RunRepository{db: db, retrier: retrier}
}

// Create inserts a finished run.
func (r *RunRepository) Create(ctx context.Context, run *domain.ReconciliationRun) error {
	err := r.retrier.Retry(ctx, func() error {
		_, err := r.db.Exec(ctx, insertRunSQL,
			run.ID,
			run.BoardID,
			run.ItemID,
			string(run.Trigger),
			run.Delta.String(),
			run.CarryIn.String(),
			run.StartIndex,
			run.ItemsUpdated,
			run.ItemsFailed,
			string(run.Status),
			run.ErrorMessage,
			run.StartedAt,
			run.FinishedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	return nil
}

// List returns runs newest first. An empty boardID matches every board.
func (r *RunRepository) List(ctx context.Context, boardID string, limit, offset int) ([]*domain.ReconciliationRun, error) {
	rows, err := r.db.Query(ctx, listRunsSQL, boardID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*domain.ReconciliationRun, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	return runs, nil
}

func scanRun(row pgx.Row) (*domain.ReconciliationRun, error) {
	var (
		run               domain.ReconciliationRun
		trigger, status   string
		delta, carryIn    string
		started, finished time.Time
	)

	err := row.Scan(
		&run.ID,
		&run.BoardID,
		&run.ItemID,
		&trigger,
		&delta,
		&carryIn,
		&run.StartIndex,
		&run.ItemsUpdated,
		&run.ItemsFailed,
		&status,
		&run.ErrorMessage,
		&started,
		&finished,
	)
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if run.Delta, err = decimal.NewFromString(delta); err != nil {
		return nil, fmt.Errorf("run %s delta: %w", run.ID, err)
	}
	if run.CarryIn, err = decimal.NewFromString(carryIn); err != nil {
		return nil, fmt.Errorf("run %s carry_in: %w", run.ID, err)
	}

	run.Trigger = domain.Trigger(trigger)
	run.Status = domain.RunStatus(status)
	run.StartedAt = started.UTC()
	run.FinishedAt = finished.UTC()

	return &run, nil
}
