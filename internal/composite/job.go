package composite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/logging"
	"whaleflow-lab/internal/storage"
)

// Defaults applied when JobOptions leaves a field zero.
const (
	DefaultInterval        = 15 * time.Minute
	DefaultAutoDetectLimit = 10
	DefaultJobParallelism  = 4
)

// Broadcaster receives every stored composite signal.
type Broadcaster interface {
	Broadcast(sig *domain.CompositeSignal)
}

// JobOptions configures a Job.
type JobOptions struct {
	Scorer      *Scorer
	Store       storage.CompositeSignalStore // optional
	Broadcaster Broadcaster                  // optional

	// Tokens to score; empty means the most active tokens.
	Tokens          []string
	AutoDetectLimit int
	Interval        time.Duration
	Parallelism     int

	Logger *zap.Logger
}

// Job scores a token set on a fixed cadence and appends each result to the store.
type Job struct {
	scorer          *Scorer
	store           storage.CompositeSignalStore
	broadcaster     Broadcaster
	tokens          []string
	autoDetectLimit int
	interval        time.Duration
	parallelism     int
	logger          *zap.Logger

	mu      sync.Mutex
	running bool
}

// NewJob creates a new Job.
func NewJob(opts JobOptions) *Job {
	j := &Job{
		scorer:          opts.Scorer,
		store:           opts.Store,
		broadcaster:     opts.Broadcaster,
		tokens:          opts.Tokens,
		autoDetectLimit: opts.AutoDetectLimit,
		interval:        opts.Interval,
		parallelism:     opts.Parallelism,
		logger:          logging.OrNop(opts.Logger),
	}
	if j.autoDetectLimit <= 0 {
		j.autoDetectLimit = DefaultAutoDetectLimit
	}
	if j.interval <= 0 {
		j.interval = DefaultInterval
	}
	if j.parallelism <= 0 {
		j.parallelism = DefaultJobParallelism
	}
	return j
}

// Run scores immediately and then on every tick until ctx is done.
func (j *Job) Run(ctx context.Context) error {
	j.logger.Info("composite job started", zap.Duration("interval", j.interval))

	j.tick(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.tick(ctx)
		}
	}
}

func (j *Job) tick(ctx context.Context) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		j.logger.Warn("composite run still in progress, skipping tick")
		return
	}
	j.running = true
	j.mu.Unlock()

	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	start := time.Now()
	signals, err := j.RunOnce(ctx)
	if err != nil {
		j.logger.Error("composite run failed", zap.Error(err))
		return
	}
	j.logger.Info("composite run completed",
		zap.Int("signals", len(signals)),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// RunOnce scores every token once, persists and broadcasts the results.
// Signals are returned in token order. A token whose score or insert fails is
// logged and left out; the run fails only when the token set cannot be resolved.
func (j *Job) RunOnce(ctx context.Context) ([]*domain.CompositeSignal, error) {
	tokens, err := j.resolveTokens(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*domain.CompositeSignal, len(tokens))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.parallelism)
	for i, token := range tokens {
		g.Go(func() error {
			sig, err := j.scorer.Score(gctx, token)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				j.logger.Warn("composite score failed", zap.String("token", token), zap.Error(err))
				return nil
			}
			if j.store != nil {
				if err := j.store.Insert(gctx, sig); err != nil {
					if !errors.Is(err, storage.ErrDuplicateKey) {
						j.logger.Warn("composite signal not stored", zap.String("token", token), zap.Error(err))
						return nil
					}
					j.logger.Debug("composite signal already stored", zap.String("token", token))
				}
			}
			results[i] = sig
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*domain.CompositeSignal, 0, len(results))
	for _, sig := range results {
		if sig == nil {
			continue
		}
		out = append(out, sig)
		if j.broadcaster != nil {
			j.broadcaster.Broadcast(sig)
		}
	}
	return out, nil
}

func (j *Job) resolveTokens(ctx context.Context) ([]string, error) {
	if len(j.tokens) > 0 {
		return j.tokens, nil
	}
	tokens, err := j.scorer.ActiveTokens(ctx, j.autoDetectLimit)
	if err != nil {
		return nil, fmt.Errorf("auto-detect composite tokens: %w", err)
	}
	return tokens, nil
}
