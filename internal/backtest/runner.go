// Package backtest runs the whale-flow signal backtest end to end:
// flow aggregation, classification, price fetch, simulation and reporting.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/flow"
	"whaleflow-lab/internal/logging"
	"whaleflow-lab/internal/observability"
	"whaleflow-lab/internal/price"
	"whaleflow-lab/internal/reporting"
	"whaleflow-lab/internal/signal"
	"whaleflow-lab/internal/simulation"
	"whaleflow-lab/internal/storage"
)

// Defaults applied when RunnerOptions leaves a field zero.
const (
	DefaultDeadline        = 60 * time.Second
	DefaultAutoDetectLimit = 30
)

// PriceSource fetches hourly price series for many tokens.
// Implemented by *price.Fetcher.
type PriceSource interface {
	FetchAll(ctx context.Context, tokens []string, start, end int64, fxRate float64) ([]price.SeriesResult, error)
}

// FXSource returns the USD per target-currency rate of a run. It never fails.
// Implemented by *price.FXService.
type FXSource interface {
	Rate(ctx context.Context) float64
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Transactions storage.TransactionStore
	Prices       PriceSource
	FX           FXSource // nil uses price.DefaultFXRate

	// Trades persists every simulated trade when set.
	Trades storage.SimulatedTradeStore

	AggregateParallelism int
	AutoDetectLimit      int
	Deadline             time.Duration

	Logger   *zap.Logger
	Now      func() time.Time // Injectable clock for deterministic windows
	NewRunID func() string
}

// Runner executes backtest runs. A Runner holds no per-run state and is safe
// for concurrent use.
type Runner struct {
	transactions    storage.TransactionStore
	aggregator      *flow.Aggregator
	prices          PriceSource
	fx              FXSource
	trades          storage.SimulatedTradeStore
	autoDetectLimit int
	deadline        time.Duration
	logger          *zap.Logger
	now             func() time.Time
	newRunID        func() string
}

// NewRunner creates a new backtest runner.
func NewRunner(opts RunnerOptions) *Runner {
	r := &Runner{
		transactions: opts.Transactions,
		aggregator: flow.NewAggregator(flow.AggregatorOptions{
			Store:       opts.Transactions,
			Parallelism: opts.AggregateParallelism,
			Logger:      opts.Logger,
		}),
		prices:          opts.Prices,
		fx:              opts.FX,
		trades:          opts.Trades,
		autoDetectLimit: opts.AutoDetectLimit,
		deadline:        opts.Deadline,
		logger:          logging.OrNop(opts.Logger),
		now:             opts.Now,
		newRunID:        opts.NewRunID,
	}
	if r.autoDetectLimit <= 0 {
		r.autoDetectLimit = DefaultAutoDetectLimit
	}
	if r.deadline <= 0 {
		r.deadline = DefaultDeadline
	}
	if r.now == nil {
		r.now = func() time.Time { return time.Now().UTC() }
	}
	if r.newRunID == nil {
		r.newRunID = func() string { return uuid.NewString() }
	}
	return r
}

// Window returns the [start, end) range of cfg. Without StartMs the window
// ends at the start of the current hour so every bucket is complete.
func (r *Runner) Window(cfg domain.BacktestConfig) (int64, int64) {
	var start int64
	if cfg.StartMs != nil {
		start = price.HourFloor(*cfg.StartMs)
	} else {
		start = price.HourFloor(r.now().UnixMilli()) - int64(cfg.WindowHours)*domain.HourMs
	}
	return start, start + int64(cfg.WindowHours)*domain.HourMs
}

// Run executes one backtest. It returns either a full report, possibly with
// data issues, or an error: ErrInvalidConfig, ErrNoTokens, ErrDeadlineExceeded,
// or a wrapped storage error from auto-detection or persistence.
func (r *Runner) Run(ctx context.Context, cfg domain.BacktestConfig) (*reporting.BacktestReport, error) {
	started := time.Now()
	report, err := r.run(ctx, cfg)

	status := "success"
	switch {
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrNoTokens):
		status = "rejected"
	case errors.Is(err, ErrDeadlineExceeded):
		status = "timeout"
	case err != nil:
		status = "error"
	}
	observability.RecordBacktestRun(status, time.Since(started).Seconds(), r.now().Unix())
	return report, err
}

func (r *Runner) run(ctx context.Context, cfg domain.BacktestConfig) (*reporting.BacktestReport, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.deadline)
	defer cancel()

	runID := r.newRunID()
	start, end := r.Window(cfg)
	logger := r.logger.With(zap.String("run_id", runID))

	tokens, err := r.resolveTokens(ctx, cfg.Tokens, start, end)
	if err != nil {
		return nil, r.deadlineErr(ctx, err)
	}
	cfg.Tokens = tokens

	logger.Info("backtest started",
		zap.Strings("tokens", tokens),
		zap.Int64("start_ms", start),
		zap.Int64("end_ms", end),
	)

	fxRate := price.DefaultFXRate
	if r.fx != nil {
		fxRate = r.fx.Rate(ctx)
	}

	// Flow aggregation and classification, token by token.
	buckets := domain.HourBuckets(start, cfg.WindowHours)
	signals := make(map[string][]domain.HourlySignal, len(tokens))
	signalCounts := make(map[string]int, len(tokens))
	var issues []string

	for _, token := range tokens {
		hourly, err := r.aggregator.Hourly(ctx, token, buckets)
		if err != nil {
			return nil, r.deadlineErr(ctx, fmt.Errorf("aggregate %s: %w", token, err))
		}
		issues = append(issues, hourly.Issues...)

		sigs := signal.Generate(token, hourly.Buckets, hourly.Aggregates)
		signals[token] = sigs
		signalCounts[token] = signal.CountTradeable(sigs)
		for _, s := range sigs {
			if s.Signal.IsTradeable() {
				observability.RecordSignal(string(s.Signal))
			}
		}
	}

	// Prices, rate limited inside the fetcher.
	series, err := r.prices.FetchAll(ctx, tokens, start, end, fxRate)
	if err != nil {
		return nil, r.deadlineErr(ctx, fmt.Errorf("fetch prices: %w", err))
	}
	prices := make(map[string][]domain.PricePoint, len(series))
	for _, s := range series {
		prices[s.Token] = s.Points
		if s.Err != nil {
			issues = append(issues, seriesIssue(s))
		}
	}

	// Simulation.
	costs := costParams(cfg)
	trades := make(map[string][]domain.SimulatedTrade, len(tokens))
	var all []*domain.SimulatedTrade
	for _, token := range tokens {
		tt := simulation.Simulate(runID, signals[token], prices[token], costs)
		trades[token] = tt
		for i := range tt {
			observability.RecordTrade(tt[i].Skipped, tt[i].SkipReason)
			all = append(all, &tt[i])
		}
	}

	if r.trades != nil && len(all) > 0 {
		if err := r.trades.InsertBulk(ctx, all); err != nil {
			return nil, r.deadlineErr(ctx, fmt.Errorf("persist trades: %w", err))
		}
	}

	report := reporting.NewGenerator().WithClock(r.now).Generate(reporting.RunResult{
		RunID:         runID,
		Config:        cfg,
		WindowStartMs: start,
		WindowEndMs:   end,
		FXRate:        fxRate,
		Tokens:        tokens,
		Trades:        trades,
		SignalCounts:  signalCounts,
		Issues:        issues,
	})

	logger.Info("backtest finished",
		zap.Int("trades", report.Portfolio.TradeCount),
		zap.Int("skipped", report.Portfolio.SkippedCount),
		zap.Float64("cumulative_pnl", report.Portfolio.CumulativePnL),
		zap.String("verdict", report.Verdict),
	)
	return report, nil
}

// resolveTokens normalizes the requested tokens or auto-detects the most active ones.
func (r *Runner) resolveTokens(ctx context.Context, requested []string, start, end int64) ([]string, error) {
	if tokens := normalizeTokens(requested); len(tokens) > 0 {
		return tokens, nil
	}

	active, err := r.transactions.GetActiveSymbols(ctx, start, end, r.autoDetectLimit)
	if err != nil {
		return nil, fmt.Errorf("auto-detect tokens: %w", err)
	}
	tokens := normalizeTokens(active)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: no whale activity between %d and %d", ErrNoTokens, start, end)
	}
	r.logger.Info("auto-detected tokens", zap.Strings("tokens", tokens))
	return tokens, nil
}

// deadlineErr maps an error caused by the run deadline to ErrDeadlineExceeded.
func (r *Runner) deadlineErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %v", ErrDeadlineExceeded, r.deadline, err)
	}
	return err
}

func seriesIssue(s price.SeriesResult) string {
	if errors.Is(s.Err, price.ErrUnknownSymbol) {
		return fmt.Sprintf("%s: no price mapping, all trades skipped", s.Token)
	}
	return fmt.Sprintf("%s: price series unavailable: %v", s.Token, s.Err)
}
