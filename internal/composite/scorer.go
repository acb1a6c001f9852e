package composite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/flow"
	"whaleflow-lab/internal/logging"
	"whaleflow-lab/internal/observability"
	"whaleflow-lab/internal/price"
	"whaleflow-lab/internal/storage"
)

// Defaults applied when ScorerOptions leaves a field zero.
const (
	DefaultSourceTimeout = 5 * time.Second
	DefaultWindowHours   = 48
)

// Source names used in logs and metrics.
const (
	SourceFlow      = "flow"
	SourceMomentum  = "momentum"
	SourceSentiment = "sentiment"
	SourceSocial    = "social"
	SourceCommunity = "community"
)

// ScorerOptions configures a Scorer. Every source is optional.
type ScorerOptions struct {
	Transactions storage.TransactionStore
	Momentum     price.MomentumProvider
	Market       storage.MarketContextStore

	// MomentumLimiter spaces calls to the momentum provider across every
	// token the scorer serves. Nil means unlimited.
	MomentumLimiter *rate.Limiter

	SourceTimeout time.Duration
	WindowHours   int // split in two halves: previous and current

	Logger *zap.Logger
	Now    func() time.Time
}

// Scorer gathers the five sources of one token concurrently and scores them.
type Scorer struct {
	transactions    storage.TransactionStore
	momentum        price.MomentumProvider
	momentumLimiter *rate.Limiter
	market          storage.MarketContextStore
	sourceTimeout   time.Duration
	windowHours     int
	logger          *zap.Logger
	now             func() time.Time
}

// NewScorer creates a new Scorer.
func NewScorer(opts ScorerOptions) *Scorer {
	s := &Scorer{
		transactions:    opts.Transactions,
		momentum:        opts.Momentum,
		momentumLimiter: opts.MomentumLimiter,
		market:          opts.Market,
		sourceTimeout:   opts.SourceTimeout,
		windowHours:     opts.WindowHours,
		logger:          logging.OrNop(opts.Logger),
		now:             opts.Now,
	}
	if s.sourceTimeout <= 0 {
		s.sourceTimeout = DefaultSourceTimeout
	}
	if s.windowHours < 2 {
		s.windowHours = DefaultWindowHours
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Score gathers inputs for token and returns its composite signal. A slow or
// failing source only removes its tier; the call fails only on an empty token
// or a cancelled context.
func (s *Scorer) Score(ctx context.Context, token string) (*domain.CompositeSignal, error) {
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", storage.ErrInvalidInput)
	}

	in, err := s.Gather(ctx, token)
	if err != nil {
		observability.RecordCompositeRun("error")
		return nil, err
	}

	sig := Score(in)
	observability.RecordCompositeRun("success")
	observability.SetCompositeScore(token, sig.Score)
	return &sig, nil
}

// Gather fetches all sources concurrently, each bounded by the source timeout.
func (s *Scorer) Gather(ctx context.Context, token string) (Inputs, error) {
	nowMs := s.now().UnixMilli()
	in := Inputs{Token: token, NowMs: nowMs}

	// Each goroutine writes a distinct field of in; Wait orders the writes
	// before the read below.
	var g errgroup.Group
	g.Go(func() error {
		in.Flow = fetchSource(s, ctx, token, SourceFlow, s.transactions != nil, func(c context.Context) (*FlowWindow, error) {
			return s.flowWindow(c, token, nowMs)
		})
		return nil
	})
	g.Go(func() error {
		// The limiter wait sits outside the source timeout so queueing behind
		// other tokens does not count against this call.
		if !s.waitMomentum(ctx, token) {
			return nil
		}
		in.Momentum = fetchSource(s, ctx, token, SourceMomentum, s.momentum != nil, func(c context.Context) (*domain.PriceMomentum, error) {
			return s.momentum.Momentum(c, token)
		})
		return nil
	})
	g.Go(func() error {
		in.Sentiment = fetchSource(s, ctx, token, SourceSentiment, s.market != nil, func(c context.Context) (*domain.SentimentScore, error) {
			return s.market.GetSentiment(c, token)
		})
		return nil
	})
	g.Go(func() error {
		in.Social = fetchSource(s, ctx, token, SourceSocial, s.market != nil, func(c context.Context) (*domain.SocialMetrics, error) {
			return s.market.GetSocial(c, token)
		})
		return nil
	})
	g.Go(func() error {
		in.Votes = fetchSource(s, ctx, token, SourceCommunity, s.market != nil, func(c context.Context) (*domain.VoteTally, error) {
			return s.market.GetVotes(c, token)
		})
		// Developer activity is optional and shares the community tier.
		in.Dev = fetchSource(s, ctx, token, SourceCommunity, s.market != nil, func(c context.Context) (*domain.DevActivity, error) {
			return s.market.GetDevActivity(c, token)
		})
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Inputs{}, err
	}
	return in, nil
}

// waitMomentum reserves a provider slot. A refusal drops the momentum tier.
func (s *Scorer) waitMomentum(ctx context.Context, token string) bool {
	if s.momentum == nil || s.momentumLimiter == nil {
		return true
	}
	if err := s.momentumLimiter.Wait(ctx); err != nil {
		observability.RecordCompositeSourceFailure(SourceMomentum)
		s.logger.Warn("momentum rate limiter refused call",
			zap.String("token", token),
			zap.Error(err),
		)
		return false
	}
	return true
}

// fetchSource runs fn under the source timeout. Any error, including
// storage.ErrNotFound, yields nil; only real failures are logged and counted.
func fetchSource[T any](s *Scorer, ctx context.Context, token, source string, enabled bool, fn func(context.Context) (*T, error)) *T {
	if !enabled {
		return nil
	}
	c, cancel := context.WithTimeout(ctx, s.sourceTimeout)
	defer cancel()

	v, err := fn(c)
	if err == nil {
		return v
	}
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, price.ErrUnknownSymbol) {
		s.logger.Debug("composite source has no data", zap.String("token", token), zap.String("source", source))
		return nil
	}
	observability.RecordCompositeSourceFailure(source)
	s.logger.Warn("composite source unavailable",
		zap.String("token", token),
		zap.String("source", source),
		zap.Error(err),
	)
	return nil
}

// flowWindow reads the full window once and splits it into two halves.
func (s *Scorer) flowWindow(ctx context.Context, token string, nowMs int64) (*FlowWindow, error) {
	end := price.HourFloor(nowMs) + domain.HourMs
	half := int64(s.windowHours/2) * domain.HourMs
	mid := end - half
	start := mid - half

	txs, err := s.transactions.GetSignalRows(ctx, token, start, end)
	if err != nil {
		return nil, err
	}

	var prev, cur []*domain.RawTransaction
	largest := 0.0
	for _, tx := range txs {
		if tx.Timestamp < mid {
			prev = append(prev, tx)
			continue
		}
		cur = append(cur, tx)
		if tx.USDValue > largest {
			largest = tx.USDValue
		}
	}

	return &FlowWindow{
		Current:      flow.Aggregate(cur),
		Previous:     flow.Aggregate(prev),
		LargestTxUSD: largest,
	}, nil
}

// ActiveTokens returns the most active tokens of the current half-window.
func (s *Scorer) ActiveTokens(ctx context.Context, limit int) ([]string, error) {
	if s.transactions == nil {
		return nil, nil
	}
	nowMs := s.now().UnixMilli()
	end := price.HourFloor(nowMs) + domain.HourMs
	start := end - int64(s.windowHours/2)*domain.HourMs
	return s.transactions.GetActiveSymbols(ctx, start, end, limit)
}
