package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Board API
	MondayAPIURL            string        `env:"MONDAY_API_URL"             envDefault:"https://api.monday.com/v2"`
	MondayAPIToken          string        `env:"MONDAY_API_TOKEN"`
	MondayAPIVersion        string        `env:"MONDAY_API_VERSION"         envDefault:"2024-10"`
	MondayRequestTimeout    time.Duration `env:"MONDAY_REQUEST_TIMEOUT"     envDefault:"30s"`
	MondayRequestsPerSecond float64       `env:"MONDAY_REQUESTS_PER_SECOND" envDefault:"5"`
	MondayMaxRetries        int           `env:"MONDAY_MAX_RETRIES"         envDefault:"3"`

	// Board layout
	BoardID         string `env:"BOARD_ID"`
	DeltaColumnID   string `env:"DELTA_COLUMN_ID"`
	BalanceColumnID string `env:"BALANCE_COLUMN_ID"`

	// Reconciliation
	PageSize         int           `env:"PAGE_SIZE"         envDefault:"500"`
	WriteBatchSize   int           `env:"WRITE_BATCH_SIZE"  envDefault:"25"`
	ReconcileTimeout time.Duration `env:"RECONCILE_TIMEOUT" envDefault:"2m"`
	LockTTL          time.Duration `env:"LOCK_TTL"          envDefault:"3m"`
	LockWait         time.Duration `env:"LOCK_WAIT"         envDefault:"30s"`

	// Rollup (optional)
	RollupSourceBoardID  string `env:"ROLLUP_SOURCE_BOARD_ID"`
	RollupSourceColumnID string `env:"ROLLUP_SOURCE_COLUMN_ID"`
	RollupTargetBoardID  string `env:"ROLLUP_TARGET_BOARD_ID"`
	RollupTargetColumnID string `env:"ROLLUP_TARGET_COLUMN_ID"`

	// Webhook signature (optional - leave empty to disable)
	WebhookSigningSecret string `env:"WEBHOOK_SIGNING_SECRET"`

	// Database (optional - leave empty to keep no run history)
	DatabaseURL      string        `env:"DATABASE_URL"`
	DatabaseMaxConns int           `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	DatabaseMinConns int           `env:"DATABASE_MIN_CONNS" envDefault:"1"`
	DatabaseTimeout  time.Duration `env:"DATABASE_TIMEOUT"   envDefault:"10s"`

	// Redis (optional - leave empty for in-process locks and no deduplication)
	RedisURL string `env:"REDIS_URL"`

	// HTTP Server
	HTTPPort            string        `env:"HTTP_PORT"             envDefault:"8080"`
	HTTPReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT"     envDefault:"30s"`
	HTTPWriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT"    envDefault:"150s"`
	HTTPIdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT"     envDefault:"60s"`
	HTTPShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Inbound rate limiting (RATE_LIMIT_RPS <= 0 disables it)
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS"   envDefault:"50"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"100"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Idempotency
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
}

// Load reads the optional dotenv files and then the environment. Variables
// already set in the environment win over dotenv values.
func Load(files ...string) (*Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required settings and value ranges.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.MondayAPIToken) == "" {
		errs = append(errs, errors.New("MONDAY_API_TOKEN is required"))
	}
	if strings.TrimSpace(c.DeltaColumnID) == "" {
		errs = append(errs, errors.New("DELTA_COLUMN_ID is required"))
	}
	if strings.TrimSpace(c.BalanceColumnID) == "" {
		errs = append(errs, errors.New("BALANCE_COLUMN_ID is required"))
	}
	if c.DeltaColumnID != "" && c.DeltaColumnID == c.BalanceColumnID {
		errs = append(errs, errors.New("DELTA_COLUMN_ID and BALANCE_COLUMN_ID must differ"))
	}
	if c.PageSize < 1 || c.PageSize > 500 {
		errs = append(errs, fmt.Errorf("PAGE_SIZE must be between 1 and 500, got %d", c.PageSize))
	}
	if c.WriteBatchSize < 1 {
		errs = append(errs, fmt.Errorf("WRITE_BATCH_SIZE must be positive, got %d", c.WriteBatchSize))
	}
	if c.ReconcileTimeout <= 0 {
		errs = append(errs, errors.New("RECONCILE_TIMEOUT must be positive"))
	}
	if c.MondayMaxRetries < 0 {
		errs = append(errs, errors.New("MONDAY_MAX_RETRIES must not be negative"))
	}
	if c.RedisURL != "" && c.LockTTL < c.ReconcileTimeout {
		errs = append(errs, errors.New("LOCK_TTL must cover RECONCILE_TIMEOUT"))
	}

	return errors.Join(errs...)
}

// RollupConfigured reports whether every rollup setting is present.
func (c *Config) RollupConfigured() bool {
	return c.RollupSourceBoardID != "" && c.RollupSourceColumnID != "" &&
		c.RollupTargetBoardID != "" && c.RollupTargetColumnID != ""
}
