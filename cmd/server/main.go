package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/boardbalance/internal/adapter/http"
	"github.com/iho/boardbalance/internal/adapter/http/handler"
	"github.com/iho/boardbalance/internal/adapter/http/middleware"
	"github.com/iho/boardbalance/internal/adapter/lock"
	"github.com/iho/boardbalance/internal/adapter/monday"
	postgresRepo "github.com/iho/boardbalance/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/boardbalance/internal/adapter/repository/redis"
	"github.com/iho/boardbalance/internal/domain"
	"github.com/iho/boardbalance/internal/infrastructure/auth"
	"github.com/iho/boardbalance/internal/infrastructure/config"
	"github.com/iho/boardbalance/internal/infrastructure/logger"
	"github.com/iho/boardbalance/internal/infrastructure/metrics"
	"github.com/iho/boardbalance/internal/infrastructure/postgres"
	"github.com/iho/boardbalance/internal/infrastructure/redis"
	"github.com/iho/boardbalance/internal/usecase"
)

const limiterIdleTimeout = 10 * time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

// app is the wired service.
type app struct {
	handler     http.Handler
	rateLimiter *middleware.RateLimiter
	closers     []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      a.handler,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	if a.rateLimiter != nil {
		go cleanupLimiters(ctx, a.rateLimiter, log)
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server...")

	// Graceful shutdown lets in-flight reconciliations finish their writes.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	a := &app{}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	var checks []handler.HealthCheck

	// Redis backs cross-replica board locks and webhook deduplication.
	var (
		locker           usecase.BoardLocker
		idempotencyStore usecase.IdempotencyStore
	)
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		log.Info().Msg("connected to redis")

		locker = redisRepo.NewBoardLock(client, cfg.LockTTL, cfg.LockWait, m, log)
		idempotencyStore = redisRepo.NewIdempotencyStore(client)
		checks = append(checks, handler.HealthCheck{Name: "redis", Ping: pingRedis(client)})
	} else {
		log.Warn().Msg("REDIS_URL not set: using in-process board locks and no webhook deduplication")
		locker = lock.NewLocalBoardLocker(cfg.LockWait, m)
	}

	// PostgreSQL keeps the run history.
	var runs usecase.RunRepository = postgresRepo.NewNullRunRepository()
	if cfg.DatabaseURL != "" {
		if err := postgres.RunMigrations(cfg.DatabaseURL, log); err != nil {
			a.close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}

		pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
			DatabaseURL:    cfg.DatabaseURL,
			MaxConns:       cfg.DatabaseMaxConns,
			MinConns:       cfg.DatabaseMinConns,
			ConnectTimeout: cfg.DatabaseTimeout,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		log.Info().Msg("connected to postgres")

		runs = postgresRepo.NewRunRepository(pool, postgresRepo.NewRetrier(log))
		checks = append(checks, handler.HealthCheck{Name: "postgres", Ping: pool.Ping})
	} else {
		log.Warn().Msg("DATABASE_URL not set: reconciliation runs are not recorded")
	}

	client := monday.NewClient(monday.Config{
		URL:               cfg.MondayAPIURL,
		Token:             cfg.MondayAPIToken,
		APIVersion:        cfg.MondayAPIVersion,
		Timeout:           cfg.MondayRequestTimeout,
		RequestsPerSecond: cfg.MondayRequestsPerSecond,
		MaxRetries:        cfg.MondayMaxRetries,
		WriteBatchSize:    cfg.WriteBatchSize,
	}, m, log)
	reader := usecase.NewBoardReader(client, cfg.PageSize, log)

	// Initialize use cases
	reconcileUC := usecase.NewReconcileUseCase(
		reader, client, locker, runs, postgresRepo.NewULIDGenerator(), m, log,
		usecase.ReconcileConfig{
			Columns: domain.BalanceColumns{
				DeltaColumnID:   cfg.DeltaColumnID,
				BalanceColumnID: cfg.BalanceColumnID,
			},
			Timeout: cfg.ReconcileTimeout,
		},
	)
	rollupUC := usecase.NewRollupUseCase(reader, client, locker, m, log, usecase.RollupInput{
		SourceBoardID:  cfg.RollupSourceBoardID,
		SourceColumnID: cfg.RollupSourceColumnID,
		TargetBoardID:  cfg.RollupTargetBoardID,
		TargetColumnID: cfg.RollupTargetColumnID,
	})
	runUC := usecase.NewRunUseCase(runs)

	routerCfg := httpAdapter.RouterConfig{
		WebhookHandler: handler.NewWebhookHandler(reconcileUC, idempotencyStore, handler.WebhookConfig{
			BoardID:  cfg.BoardID,
			DedupTTL: cfg.IdempotencyTTL,
		}, m, log),
		ReconcileHandler: handler.NewReconcileHandler(reconcileUC),
		RollupHandler:    handler.NewRollupHandler(rollupUC),
		RunHandler:       handler.NewRunHandler(runUC),
		HealthHandler:    handler.NewHealthHandler(checks...),
		IdempotencyStore: idempotencyStore,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		Registry:         registry,
		Logger:           log,
	}
	if cfg.WebhookSigningSecret != "" {
		routerCfg.WebhookVerifier = auth.NewWebhookVerifier(cfg.WebhookSigningSecret)
	} else {
		log.Warn().Msg("WEBHOOK_SIGNING_SECRET not set: webhook signatures are not verified")
	}
	if cfg.RateLimitRPS > 0 {
		a.rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		routerCfg.RateLimiter = a.rateLimiter
	}

	a.handler = httpAdapter.NewRouter(routerCfg)
	return a, nil
}

func pingRedis(client *goredis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

func cleanupLimiters(ctx context.Context, rl *middleware.RateLimiter, log zerolog.Logger) {
	ticker := time.NewTicker(limiterIdleTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := rl.CleanupLimiters(limiterIdleTimeout); removed > 0 {
				log.Debug().Int("removed", removed).Msg("evicted idle rate limiters")
			}
		}
	}
}
