package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/boardbalance/internal/domain"
	"github.com/iho/boardbalance/internal/infrastructure/metrics"
)

// releaseScript deletes the lock only while it still belongs to the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var errLockHeld = errors.New("lock held")

// BoardLock implements usecase.BoardLocker with a Redis lease so that several
// replicas serialize work on the same board.
type BoardLock struct {
	client       *redis.Client
	prefix       string
	ttl          time.Duration
	wait         time.Duration
	pollInterval time.Duration
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

// NewBoardLock creates a new BoardLock. The lease expires after ttl if the
// holder dies; acquisition gives up after wait. m may be nil.
func NewBoardLock(client *redis.Client, ttl, wait time.Duration, m *metrics.Metrics, logger zerolog.Logger) *BoardLock {
	return &BoardLock{
		client:       client,
		prefix:       "board-lock:",
		ttl:          ttl,
		wait:         wait,
		pollInterval: 25 * time.Millisecond,
		metrics:      m,
		logger:       logger,
	}
}

// Lock acquires the lease for boardID.
func (l *BoardLock) Lock(ctx context.Context, boardID string) (func(), error) {
	key := l.prefix + boardID
	token := uuid.NewString()
	start := time.Now()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.pollInterval
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = l.wait

	err := backoff.Retry(func() error {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return errLockHeld
		}
		return nil
	}, backoff.WithContext(b, ctx))

	if l.metrics != nil {
		l.metrics.ObserveLockWait(err == nil, time.Since(start))
	}

	switch {
	case err == nil:
	case errors.Is(err, errLockHeld), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return nil, fmt.Errorf("%w: board %s: %v", domain.ErrBoardBusy, boardID, err)
	default:
		return nil, fmt.Errorf("acquire board lock: %w", err)
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn().Err(err).Str("board_id", boardID).Msg("failed to release board lock")
		}
	}, nil
}
