package flow

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/logging"
	"whaleflow-lab/internal/storage"
)

// DefaultParallelism bounds concurrent transaction store queries.
const DefaultParallelism = 8

// AggregatorOptions configures an Aggregator.
type AggregatorOptions struct {
	Store       storage.TransactionStore
	Parallelism int
	Logger      *zap.Logger
}

// Aggregator fetches hourly flow aggregates for a token window.
type Aggregator struct {
	store       storage.TransactionStore
	parallelism int
	logger      *zap.Logger
}

// NewAggregator creates a new Aggregator.
func NewAggregator(opts AggregatorOptions) *Aggregator {
	p := opts.Parallelism
	if p <= 0 {
		p = DefaultParallelism
	}
	return &Aggregator{
		store:       opts.Store,
		parallelism: p,
		logger:      logging.OrNop(opts.Logger),
	}
}

// HourlyResult is the dense aggregate series for one token.
type HourlyResult struct {
	Token      string
	Buckets    []domain.HourBucket
	Aggregates []domain.FlowAggregate // Aggregates[i] belongs to Buckets[i]
	Issues     []string               // buckets whose fetch failed and were treated as no data
}

// AggregateBucket fetches and reduces one token's transactions for [start, end).
func (a *Aggregator) AggregateBucket(ctx context.Context, token string, start, end int64) (domain.FlowAggregate, error) {
	if start >= end {
		return domain.FlowAggregate{}, fmt.Errorf("invalid bucket [%d, %d): start must be before end", start, end)
	}
	txs, err := a.store.GetSignalRows(ctx, token, start, end)
	if err != nil {
		return domain.FlowAggregate{}, fmt.Errorf("get signal rows for %s: %w", token, err)
	}
	return Aggregate(txs), nil
}

// Hourly fetches every bucket of the window concurrently with bounded parallelism.
// A failed bucket fetch degrades to the zero aggregate and is reported in Issues.
// Only context cancellation aborts the call.
func (a *Aggregator) Hourly(ctx context.Context, token string, buckets []domain.HourBucket) (*HourlyResult, error) {
	result := &HourlyResult{
		Token:      token,
		Buckets:    buckets,
		Aggregates: make([]domain.FlowAggregate, len(buckets)),
	}
	failures := make([]error, len(buckets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallelism)

	for i, b := range buckets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			agg, err := a.AggregateBucket(gctx, token, b.StartMs, b.EndMs)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				failures[i] = err
				return nil
			}
			result.Aggregates[i] = agg
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, err := range failures {
		if err == nil {
			continue
		}
		a.logger.Warn("flow aggregate unavailable",
			zap.String("token", token),
			zap.Int("hour_index", buckets[i].Index),
			zap.Error(err),
		)
		result.Issues = append(result.Issues,
			fmt.Sprintf("%s: hour %d transactions unavailable: %v", token, buckets[i].Index, err))
	}

	return result, nil
}
