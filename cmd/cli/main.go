package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iho/boardbalance/internal/infrastructure/config"
)

type options struct {
	baseURL string
	timeout time.Duration
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "boardbalance-cli",
		Short:         "BoardBalance CLI tool",
		Long:          `A command line interface for triggering and inspecting board balance reconciliations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the BoardBalance service")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 3*time.Minute, "Request timeout")

	rootCmd.AddCommand(
		reconcileCmd(opts),
		rollupCmd(opts),
		runsCmd(opts),
		healthCmd(opts),
		configCmd(),
	)

	return rootCmd
}

func (o *options) client() *resty.Client {
	return resty.New().
		SetBaseURL(o.baseURL).
		SetTimeout(o.timeout).
		SetHeader("Content-Type", "application/json")
}

func reconcileCmd(opts *options) *cobra.Command {
	var (
		delta          string
		idempotencyKey string
	)

	cmd := &cobra.Command{
		Use:   "reconcile <board-id> <item-id>",
		Short: "Recompute balances from an item to the end of its board",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if idempotencyKey == "" {
				idempotencyKey = uuid.NewString()
			}

			resp, err := opts.client().R().
				SetContext(cmd.Context()).
				SetHeader("Idempotency-Key", idempotencyKey).
				SetBody(map[string]string{"delta": delta}).
				SetPathParams(map[string]string{"boardID": args[0], "itemID": args[1]}).
				Post("/api/v1/boards/{boardID}/items/{itemID}/reconcile")
			return printResponse(cmd.OutOrStdout(), resp, err)
		},
	}

	cmd.Flags().StringVar(&delta, "delta", "", "New delta value of the item")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency key (random when empty)")
	_ = cmd.MarkFlagRequired("delta")

	return cmd
}

func rollupCmd(opts *options) *cobra.Command {
	var body struct {
		SourceBoardID  string `json:"source_board_id,omitempty"`
		SourceColumnID string `json:"source_column_id,omitempty"`
		TargetBoardID  string `json:"target_board_id,omitempty"`
		TargetColumnID string `json:"target_column_id,omitempty"`
	}

	cmd := &cobra.Command{
		Use:   "rollup",
		Short: "Sum a column over one board and store the total on another",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.client().R().
				SetContext(cmd.Context()).
				SetHeader("Idempotency-Key", uuid.NewString()).
				SetBody(body).
				Post("/api/v1/rollups")
			return printResponse(cmd.OutOrStdout(), resp, err)
		},
	}

	cmd.Flags().StringVar(&body.SourceBoardID, "source-board", "", "Board to sum (service default when empty)")
	cmd.Flags().StringVar(&body.SourceColumnID, "source-column", "", "Column to sum")
	cmd.Flags().StringVar(&body.TargetBoardID, "target-board", "", "Board receiving the total")
	cmd.Flags().StringVar(&body.TargetColumnID, "target-column", "", "Column receiving the total")

	return cmd
}

func runsCmd(opts *options) *cobra.Command {
	var (
		boardID       string
		limit, offset int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded reconciliation runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := opts.client().R().
				SetContext(cmd.Context()).
				SetQueryParam("limit", strconv.Itoa(limit)).
				SetQueryParam("offset", strconv.Itoa(offset))
			if boardID != "" {
				req.SetQueryParam("board_id", boardID)
			}

			resp, err := req.Get("/api/v1/runs")
			return printResponse(cmd.OutOrStdout(), resp, err)
		},
	}

	cmd.Flags().StringVar(&boardID, "board", "", "Only list runs of this board")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of runs to skip")

	return cmd
}

func healthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check service readiness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.client().R().SetContext(cmd.Context()).Get("/ready")
			return printResponse(cmd.OutOrStdout(), resp, err)
		},
	}
}

func configCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "Load and validate the service configuration from the environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "configuration OK")
			fmt.Fprintf(out, "board: %s\n", valueOr(cfg.BoardID, "any"))
			fmt.Fprintf(out, "columns: delta=%s balance=%s\n", cfg.DeltaColumnID, cfg.BalanceColumnID)
			fmt.Fprintf(out, "rollup: %t\n", cfg.RollupConfigured())
			fmt.Fprintf(out, "redis: %t\n", cfg.RedisURL != "")
			fmt.Fprintf(out, "run history: %t\n", cfg.DatabaseURL != "")
			return nil
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Dotenv file to load before the environment")

	return cmd
}

// printResponse pretty-prints the JSON body and fails on non-2xx responses.
func printResponse(out io.Writer, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	printJSON(out, resp.Body())

	if resp.IsError() {
		return fmt.Errorf("request failed with status %d", resp.StatusCode())
	}
	return nil
}

func printJSON(out io.Writer, body []byte) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		fmt.Fprintln(out, truncate(string(body), 512))
		return
	}

	pretty, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(out, string(pretty))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
