package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"whaleflow-lab/internal/backtest"
	"whaleflow-lab/internal/cache"
	"whaleflow-lab/internal/composite"
	"whaleflow-lab/internal/config"
	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/ingestion"
	"whaleflow-lab/internal/price"
	"whaleflow-lab/internal/storage"
	chstore "whaleflow-lab/internal/storage/clickhouse"
	"whaleflow-lab/internal/storage/memory"
	pgstore "whaleflow-lab/internal/storage/postgres"
)

// app holds the stores and clients shared by every command.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	transactions storage.TransactionStore
	trades       storage.SimulatedTradeStore
	signals      storage.CompositeSignalStore
	market       storage.MarketContextStore
	ticks        storage.PriceTickStore // nil without an archive
	cache        cache.Cache            // nil without Redis

	coingecko *price.CoinGeckoProvider
	fx        *price.FXService

	closers []func()
}

// newApp connects the configured stores. Redis is optional: a failed
// connection is logged and the run continues uncached.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if cfg.Storage.UseMemory {
		a.transactions = memory.NewTransactionStore()
		a.trades = memory.NewSimulatedTradeStore()
		a.signals = memory.NewCompositeSignalStore()
		a.market = memory.NewMarketContextStore()
		a.ticks = memory.NewPriceTickStore()
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		a.transactions = pgstore.NewTransactionStore(pool)
		a.trades = pgstore.NewSimulatedTradeStore(pool)
		a.signals = pgstore.NewCompositeSignalStore(pool)
		a.market = pgstore.NewMarketContextStore(pool)

		if cfg.Clickhouse.DSN != "" {
			conn, err := chstore.NewConn(ctx, cfg.Clickhouse.DSN)
			if err != nil {
				a.Close()
				return nil, fmt.Errorf("connect to clickhouse: %w", err)
			}
			a.closers = append(a.closers, func() { _ = conn.Close() })
			a.ticks = chstore.NewPriceTickStore(conn)
		}

		if cfg.Redis.Addr != "" {
			rc, err := cache.NewRedisCache(ctx, cache.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
				Prefix:   "whaleflow:",
			})
			if err != nil {
				logger.Warn("redis unavailable, running without cache", zap.Error(err))
			} else {
				a.closers = append(a.closers, func() { _ = rc.Close() })
				a.cache = rc
			}
		}
	}

	a.coingecko = price.NewCoinGeckoProvider(
		price.WithBaseURL(cfg.Price.BaseURL),
		price.WithAPIKey(cfg.Price.APIKey),
		price.WithTimeout(cfg.Price.Timeout),
		price.WithSymbols(price.NewSymbolMap(cfg.Price.Symbols)),
		price.WithLogger(logger),
	)

	fxOpts := price.FXOptions{
		URL:          cfg.FX.URL,
		FallbackRate: cfg.FX.FallbackRate,
		Timeout:      cfg.FX.Timeout,
		CacheTTL:     cfg.FX.CacheTTL,
		Logger:       logger,
	}
	if a.cache != nil {
		fxOpts.Cache = a.cache
	}
	a.fx = price.NewFXService(fxOpts)

	return a, nil
}

// Close releases connections in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// fetcher builds the price fetcher for source "provider" or "store".
func (a *app) fetcher(source string) (*price.Fetcher, error) {
	opts := price.FetcherOptions{
		CallDelay:     a.cfg.Price.CallDelay,
		RatePerSecond: a.cfg.Price.RatePerSecond,
		Burst:         a.cfg.Price.Burst,
		CacheTTL:      a.cfg.Price.CacheTTL,
		Logger:        a.logger,
	}
	if a.cache != nil {
		opts.Cache = a.cache
	}

	switch source {
	case "store":
		if a.ticks == nil {
			return nil, fmt.Errorf("price source store needs clickhouse.dsn or storage.use_memory")
		}
		opts.Provider = price.NewStoreProvider(a.ticks)
		opts.CallDelay = 0
		opts.RatePerSecond = 0
		opts.Cache = nil
	case "provider", "":
		opts.Provider = a.coingecko
		if a.cfg.Price.Archive && a.ticks != nil {
			opts.Archive = a.ticks
		}
	default:
		return nil, fmt.Errorf("unknown price source %q", source)
	}
	return price.NewFetcher(opts), nil
}

// runner builds a backtest runner. Trades are persisted only when persist is set.
func (a *app) runner(source string, persist bool) (*backtest.Runner, error) {
	fetcher, err := a.fetcher(source)
	if err != nil {
		return nil, err
	}
	opts := backtest.RunnerOptions{
		Transactions:         a.transactions,
		Prices:               fetcher,
		FX:                   a.fx,
		AggregateParallelism: a.cfg.Backtest.AggregateParallelism,
		AutoDetectLimit:      a.cfg.Backtest.AutoDetectLimit,
		Deadline:             a.cfg.Backtest.Deadline,
		Logger:               a.logger,
	}
	if persist {
		opts.Trades = a.trades
	}
	return backtest.NewRunner(opts), nil
}

// scorer builds the composite scorer. Its momentum limiter lives as long as the
// scorer, so every scheduled run shares one provider budget.
func (a *app) scorer() *composite.Scorer {
	return composite.NewScorer(composite.ScorerOptions{
		Transactions:    a.transactions,
		Momentum:        a.coingecko,
		MomentumLimiter: price.NewLimiter(a.cfg.Price.CallDelay, a.cfg.Price.RatePerSecond, a.cfg.Price.Burst),
		Market:          a.market,
		SourceTimeout:   a.cfg.Composite.SourceTimeout,
		WindowHours:     a.cfg.Composite.WindowHours,
		Logger:          a.logger,
	})
}

// defaults returns the configured backtest defaults as a run config.
func (a *app) defaults() domain.BacktestConfig {
	return domain.BacktestConfig{
		WindowHours:       a.cfg.Backtest.WindowHours,
		NotionalPerSignal: a.cfg.Backtest.Notional,
		TakerFeeBps:       a.cfg.Backtest.TakerFeeBps,
		SlippageBps:       a.cfg.Backtest.SlippageBps,
	}
}

// ingestFile loads an NDJSON transaction export into the transaction store.
func (a *app) ingestFile(ctx context.Context, path string) (ingestion.Result, error) {
	mgr := ingestion.NewManager(ingestion.ManagerOptions{
		Source: ingestion.NewFileSource(path),
		Store:  a.transactions,
		Logger: a.logger,
	})
	return mgr.IngestTransactions(ctx)
}
