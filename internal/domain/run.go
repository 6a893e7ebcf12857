package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RunStatus is the outcome of a reconciliation run.
type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// ReconciliationRun records one reconciliation attempt.
type ReconciliationRun struct {
	ID           string
	BoardID      string
	ItemID       string
	Trigger      Trigger
	Delta        decimal.Decimal
	CarryIn      decimal.Decimal
	StartIndex   int
	ItemsUpdated int
	ItemsFailed  int
	Status       RunStatus
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Duration is the wall time the run took.
func (r *ReconciliationRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Finish stamps the run with its outcome. A WriteError with some items
// written yields a partial run.
func (r *ReconciliationRun) Finish(at time.Time, updated, failed int, err error) {
	r.FinishedAt = at
	r.ItemsUpdated = updated
	r.ItemsFailed = failed

	switch {
	case err == nil:
		r.Status = RunStatusSucceeded
	case updated > 0 && failed > 0:
		r.Status = RunStatusPartial
		r.ErrorMessage = err.Error()
	default:
		r.Status = RunStatusFailed
		r.ErrorMessage = err.Error()
	}
}
