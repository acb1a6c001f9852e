package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"whaleflow-lab/internal/reporting"
)

// backtestCmd runs one backtest and prints the report
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Backtest whale-flow signals over a historical window",
	Long: `Aggregate whale transactions into hourly signals, simulate one trade per
signal against hourly prices, and print the backtest report.

Examples:
  whaleflow backtest --tokens BTC,ETH --window-hours 168
  whaleflow backtest --format markdown --output report.md
  whaleflow backtest --start 2024-01-01T00:00:00Z --price-source store --persist
  whaleflow backtest --use-memory --transactions whales.ndjson --tokens BTC`,
	RunE: runBacktest,
}

var (
	backtestTokens  []string
	backtestStart   string
	backtestPersist bool
	backtestFormat  string
	backtestOutput  string
	backtestTxFile  string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	flags := backtestCmd.Flags()
	flags.StringSliceVar(&backtestTokens, "tokens", nil, "Comma-separated tokens (empty auto-detects the most active)")
	flags.StringVar(&backtestStart, "start", "", "Window start as RFC3339 or unix ms (default: now minus the window)")
	flags.BoolVar(&backtestPersist, "persist", false, "Store every simulated trade")
	flags.StringVar(&backtestFormat, "format", "json", "Output format: json, markdown")
	flags.StringVar(&backtestOutput, "output", "", "Write the report to this file instead of stdout")
	flags.StringVar(&backtestTxFile, "transactions", "", "NDJSON transaction export to load before the run")
	flags.Int("window-hours", 24, "Backtest window length in hours")
	flags.Float64("notional", 100, "Notional per signal in GBP")
	flags.Float64("taker-fee-bps", 10, "Taker fee per side in basis points")
	flags.Float64("slippage-bps", 5, "Slippage per side in basis points")
	flags.String("price-source", "provider", "Price source: provider, store")

	mustBind(flags, map[string]string{
		"backtest.window_hours":  "window-hours",
		"backtest.notional":      "notional",
		"backtest.taker_fee_bps": "taker-fee-bps",
		"backtest.slippage_bps":  "slippage-bps",
		"price.source":           "price-source",
	})
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	format := strings.ToLower(backtestFormat)
	if format != "json" && format != "markdown" {
		return fmt.Errorf("unknown format %q (want json or markdown)", backtestFormat)
	}

	a, err := newApp(ctx, appConfig, rootLogger)
	if err != nil {
		return err
	}
	defer a.Close()

	if backtestTxFile != "" {
		if _, err := a.ingestFile(ctx, backtestTxFile); err != nil {
			return err
		}
	}

	runner, err := a.runner(appConfig.Price.Source, backtestPersist)
	if err != nil {
		return err
	}

	cfg := a.defaults()
	cfg.Tokens = backtestTokens
	if backtestStart != "" {
		startMs, err := parseStart(backtestStart)
		if err != nil {
			return err
		}
		cfg.StartMs = &startMs
	}

	report, err := runner.Run(ctx, cfg)
	if err != nil {
		return err
	}
	rootLogger.Info("backtest complete",
		zap.String("run_id", report.RunID),
		zap.String("verdict", report.Verdict),
		zap.Float64("cumulative_pnl", report.Portfolio.CumulativePnL),
	)

	var out []byte
	if format == "markdown" {
		out = []byte(reporting.RenderMarkdown(report))
	} else if out, err = reporting.RenderJSON(report); err != nil {
		return err
	}

	if backtestOutput == "" {
		_, err = cmd.OutOrStdout().Write(append(out, '\n'))
		return err
	}
	if err := os.WriteFile(backtestOutput, out, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	rootLogger.Info("report written", zap.String("path", backtestOutput))
	return nil
}

// parseStart accepts RFC3339 or unix milliseconds.
func parseStart(s string) (int64, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("invalid --start %q: want RFC3339 or unix ms", s)
	}
	return t.UnixMilli(), nil
}
