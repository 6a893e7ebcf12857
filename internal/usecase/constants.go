package usecase

import "time"

const (
	// DefaultReconcileTimeout bounds a whole reconciliation, reads and writes included.
	DefaultReconcileTimeout = 2 * time.Minute

	// DefaultPageSize is the number of items requested per board page.
	DefaultPageSize = 500

	// MaxPageSize is the largest page the board platform serves.
	MaxPageSize = 500

	// IdempotencyKeyTTL is how long processed webhook triggers are remembered.
	IdempotencyKeyTTL = 24 * time.Hour
)
