package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"whaleflow-lab/internal/composite"
)

// scoreCmd computes composite signals once and prints them
var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Compute composite signals for a token set",
	Long: `Score each token on on-chain flow, price momentum, sentiment and community
data, store the results and print them as JSON.

Examples:
  whaleflow score --tokens BTC,ETH,SOL
  whaleflow score --limit 5        # the five most active tokens`,
	RunE: runScore,
}

var (
	scoreTokens []string
	scoreLimit  int
	scoreStore  bool
)

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringSliceVar(&scoreTokens, "tokens", nil, "Comma-separated tokens (empty auto-detects the most active)")
	scoreCmd.Flags().IntVar(&scoreLimit, "limit", composite.DefaultAutoDetectLimit, "Auto-detect limit when --tokens is empty")
	scoreCmd.Flags().BoolVar(&scoreStore, "store", true, "Append results to the composite signal history")
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appConfig, rootLogger)
	if err != nil {
		return err
	}
	defer a.Close()

	tokens := scoreTokens
	if len(tokens) == 0 {
		tokens = appConfig.Composite.Tokens
	}
	opts := composite.JobOptions{
		Scorer:          a.scorer(),
		Tokens:          tokens,
		AutoDetectLimit: scoreLimit,
		Logger:          rootLogger,
	}
	if scoreStore {
		opts.Store = a.signals
	}

	signals, err := composite.NewJob(opts).RunOnce(ctx)
	if err != nil {
		return err
	}
	rootLogger.Info("scoring complete", zap.Int("signals", len(signals)))

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(signals)
}
