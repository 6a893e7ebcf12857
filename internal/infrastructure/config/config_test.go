package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iho/boardbalance/internal/infrastructure/config"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("MONDAY_API_TOKEN", "token")
	t.Setenv("DELTA_COLUMN_ID", "numbers")
	t.Setenv("BALANCE_COLUMN_ID", "numbers1")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}

	if cfg.MondayAPIURL != "https://api.monday.com/v2" {
		t.Fatalf("unexpected default API URL %s", cfg.MondayAPIURL)
	}
	if cfg.PageSize != 500 || cfg.WriteBatchSize != 25 {
		t.Fatalf("unexpected page/batch defaults: %d/%d", cfg.PageSize, cfg.WriteBatchSize)
	}
	if cfg.ReconcileTimeout != 2*time.Minute {
		t.Fatalf("expected 2m reconcile timeout, got %s", cfg.ReconcileTimeout)
	}
	if cfg.HTTPPort != "8080" {
		t.Fatalf("expected default HTTP port 8080, got %s", cfg.HTTPPort)
	}
	if cfg.RollupConfigured() {
		t.Fatalf("expected rollup to be unconfigured by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis://example")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("PAGE_SIZE", "100")
	t.Setenv("LOCK_WAIT", "5s")
	t.Setenv("ROLLUP_SOURCE_BOARD_ID", "1")
	t.Setenv("ROLLUP_SOURCE_COLUMN_ID", "numbers")
	t.Setenv("ROLLUP_TARGET_BOARD_ID", "2")
	t.Setenv("ROLLUP_TARGET_COLUMN_ID", "total")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.DatabaseURL != "postgres://example" || cfg.RedisURL != "redis://example" {
		t.Fatalf("expected storage overrides, got %s %s", cfg.DatabaseURL, cfg.RedisURL)
	}
	if cfg.HTTPPort != "9090" || cfg.PageSize != 100 || cfg.LockWait != 5*time.Second {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if !cfg.RollupConfigured() {
		t.Fatalf("expected rollup to be configured")
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("HTTP_READ_TIMEOUT", "not-a-duration")

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}

func TestLoadDotenvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "DELTA_COLUMN_ID=from_file\nBOARD_ID=123\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	// godotenv sets process variables; t.Setenv restores them afterwards.
	t.Setenv("BOARD_ID", "")
	os.Unsetenv("BOARD_ID")
	t.Setenv("DELTA_COLUMN_ID", "from_env")

	cfg, err := config.Load(path, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.BoardID != "123" {
		t.Fatalf("expected BOARD_ID from file, got %q", cfg.BoardID)
	}
	if cfg.DeltaColumnID != "from_env" {
		t.Fatalf("expected environment to win over file, got %q", cfg.DeltaColumnID)
	}
}

func TestValidate(t *testing.T) {
	base := func() *config.Config {
		return &config.Config{
			MondayAPIToken:   "token",
			DeltaColumnID:    "delta",
			BalanceColumnID:  "balance",
			PageSize:         500,
			WriteBatchSize:   25,
			ReconcileTimeout: 2 * time.Minute,
			LockTTL:          3 * time.Minute,
		}
	}

	tests := []struct {
		name   string
		mutate func(c *config.Config)
		want   string
	}{
		{name: "valid", mutate: func(*config.Config) {}},
		{name: "missing token", mutate: func(c *config.Config) { c.MondayAPIToken = "" }, want: "MONDAY_API_TOKEN"},
		{name: "missing delta column", mutate: func(c *config.Config) { c.DeltaColumnID = " " }, want: "DELTA_COLUMN_ID"},
		{name: "same columns", mutate: func(c *config.Config) { c.BalanceColumnID = "delta" }, want: "must differ"},
		{name: "page size too large", mutate: func(c *config.Config) { c.PageSize = 501 }, want: "PAGE_SIZE"},
		{name: "page size zero", mutate: func(c *config.Config) { c.PageSize = 0 }, want: "PAGE_SIZE"},
		{name: "batch size zero", mutate: func(c *config.Config) { c.WriteBatchSize = 0 }, want: "WRITE_BATCH_SIZE"},
		{name: "short lock ttl", mutate: func(c *config.Config) {
			c.RedisURL = "redis://localhost"
			c.LockTTL = time.Minute
		}, want: "LOCK_TTL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
