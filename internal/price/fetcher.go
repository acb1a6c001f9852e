package price

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"whaleflow-lab/internal/cache"
	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/logging"
	"whaleflow-lab/internal/storage"
)

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	Provider Provider

	// CallDelay is the minimum gap between provider calls. When zero,
	// RatePerSecond and Burst define the token bucket instead.
	CallDelay     time.Duration
	RatePerSecond float64
	Burst         int

	// Archive receives every tick fetched from the provider. Optional.
	Archive storage.PriceTickStore

	// Cache stores raw tick series for CacheTTL. Optional.
	Cache    cache.Cache
	CacheTTL time.Duration

	Logger *zap.Logger
}

// Fetcher retrieves hourly price series for many tokens, one token at a time.
type Fetcher struct {
	provider  Provider
	callDelay time.Duration
	rps       float64
	burst     int
	archive   storage.PriceTickStore
	cache     cache.Cache
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewFetcher creates a new Fetcher.
func NewFetcher(opts FetcherOptions) *Fetcher {
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Fetcher{
		provider:  opts.Provider,
		callDelay: opts.CallDelay,
		rps:       opts.RatePerSecond,
		burst:     burst,
		archive:   opts.Archive,
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		logger:    logging.OrNop(opts.Logger),
	}
}

// newLimiter builds a limiter scoped to one FetchAll call.
func (f *Fetcher) newLimiter() *rate.Limiter {
	return NewLimiter(f.callDelay, f.rps, f.burst)
}

// NewLimiter builds a provider-call limiter. A positive callDelay spaces calls
// evenly; otherwise rps and burst define the token bucket. Neither set means
// no limit.
func NewLimiter(callDelay time.Duration, rps float64, burst int) *rate.Limiter {
	if burst <= 0 {
		burst = 1
	}
	switch {
	case callDelay > 0:
		return rate.NewLimiter(rate.Every(callDelay), 1)
	case rps > 0:
		return rate.NewLimiter(rate.Limit(rps), burst)
	default:
		return rate.NewLimiter(rate.Inf, 1)
	}
}

// SeriesResult is the price series of one token.
type SeriesResult struct {
	Token  string
	Points []domain.PricePoint
	Err    error // why Points is empty, if it is; nil for a plain gap
}

// FetchAll fetches every token in order, waiting on the limiter between provider
// calls. A token that fails yields an empty series with Err set; only context
// cancellation aborts the loop.
func (f *Fetcher) FetchAll(ctx context.Context, tokens []string, start, end int64, fxRate float64) ([]SeriesResult, error) {
	limiter := f.newLimiter()
	results := make([]SeriesResult, 0, len(tokens))

	for _, token := range tokens {
		ticks, cached := f.cached(ctx, token, start, end)
		var err error
		if !cached {
			if werr := limiter.Wait(ctx); werr != nil {
				return nil, limiterErr(ctx, werr)
			}
			ticks, err = f.provider.FetchTicks(ctx, token, start, end)
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, ErrUnknownSymbol) {
				f.logger.Info("no price mapping for token", zap.String("token", token))
			} else {
				f.logger.Warn("price fetch failed",
					zap.String("token", token),
					zap.String("source", f.provider.Name()),
					zap.Error(err),
				)
			}
			results = append(results, SeriesResult{Token: token, Err: err})
			continue
		}

		if !cached {
			f.store(ctx, token, start, end, ticks)
		}
		results = append(results, SeriesResult{Token: token, Points: Resample(token, ticks, fxRate)})
	}

	return results, nil
}

// limiterErr reports a limiter refusal. Wait fails early, with ctx.Err() still
// nil, when the next slot falls after the deadline; that is a deadline overrun.
func limiterErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("price rate limiter: %w", ctx.Err())
	}
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("price rate limiter: %w: %v", context.DeadlineExceeded, err)
	}
	return fmt.Errorf("price rate limiter: %w", err)
}

func cacheKey(provider, token string, start, end int64) string {
	return fmt.Sprintf("prices:%s:%s:%d:%d", provider, token, start, end)
}

func (f *Fetcher) cached(ctx context.Context, token string, start, end int64) ([]*domain.PriceTick, bool) {
	if f.cache == nil {
		return nil, false
	}
	var ticks []*domain.PriceTick
	found, err := f.cache.GetJSON(ctx, cacheKey(f.provider.Name(), token, start, end), &ticks)
	if err != nil {
		f.logger.Debug("price cache read failed", zap.String("token", token), zap.Error(err))
		return nil, false
	}
	return ticks, found
}

// store writes fresh ticks to the cache and the archive. Failures are logged only.
func (f *Fetcher) store(ctx context.Context, token string, start, end int64, ticks []*domain.PriceTick) {
	if f.cache != nil && f.cacheTTL > 0 {
		if err := f.cache.SetJSON(ctx, cacheKey(f.provider.Name(), token, start, end), ticks, f.cacheTTL); err != nil {
			f.logger.Debug("price cache write failed", zap.String("token", token), zap.Error(err))
		}
	}
	if f.archive != nil && len(ticks) > 0 {
		f.archiveTicks(ctx, token, ticks)
	}
}

// archiveTicks inserts the batch, falling back to per-tick inserts when part of
// the range is already archived.
func (f *Fetcher) archiveTicks(ctx context.Context, token string, ticks []*domain.PriceTick) {
	err := f.archive.InsertBulk(ctx, ticks)
	if errors.Is(err, storage.ErrDuplicateKey) {
		for _, t := range ticks {
			err = f.archive.InsertBulk(ctx, []*domain.PriceTick{t})
			if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
				break
			}
			err = nil
		}
	}
	if err != nil {
		f.logger.Warn("archive price ticks failed", zap.String("token", token), zap.Error(err))
	}
}
