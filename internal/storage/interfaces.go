package storage

import (
	"context"

	"whaleflow-lab/internal/domain"
)

// TransactionStore provides access to whale_transactions storage.
type TransactionStore interface {
	// InsertBulk adds multiple transactions atomically. Fails entire batch on duplicate hash.
	InsertBulk(ctx context.Context, txs []*domain.RawTransaction) error

	// GetSignalRows retrieves BUY/SELL rows with CEX/DEX counterparty for a token
	// within [start, end) (end exclusive), ordered by timestamp ASC.
	// No rows is a valid, non-error response.
	GetSignalRows(ctx context.Context, symbol string, start, end int64) ([]*domain.RawTransaction, error)

	// GetActiveSymbols returns up to limit symbols ordered by signal-eligible row count DESC
	// within [start, end).
	GetActiveSymbols(ctx context.Context, start, end int64, limit int) ([]string, error)
}

// PriceTickStore provides access to price_ticks storage.
type PriceTickStore interface {
	// InsertBulk adds multiple ticks. Fails entire batch on duplicate (token, timestamp_ms).
	InsertBulk(ctx context.Context, ticks []*domain.PriceTick) error

	// GetByTimeRange retrieves ticks for a token within [start, end] (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, token string, start, end int64) ([]*domain.PriceTick, error)
}

// SimulatedTradeStore provides access to simulated_trades storage.
type SimulatedTradeStore interface {
	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.SimulatedTrade) error

	// GetByRunID retrieves all trades of a run, ordered by entry time ASC, token ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.SimulatedTrade, error)
}

// CompositeSignalStore provides access to composite_signals storage (append-only).
type CompositeSignalStore interface {
	// Insert adds a new signal. Returns ErrDuplicateKey if (token, computed_at_ms) exists.
	Insert(ctx context.Context, s *domain.CompositeSignal) error

	// GetLatest retrieves the most recent signal for a token. Returns ErrNotFound if none.
	GetLatest(ctx context.Context, token string) (*domain.CompositeSignal, error)

	// GetByTimeRange retrieves signals for a token within [start, end] (inclusive), ordered ASC.
	GetByTimeRange(ctx context.Context, token string, start, end int64) ([]*domain.CompositeSignal, error)
}

// MarketContextStore provides the stored non-flow inputs of the composite scorer.
// Every getter returns ErrNotFound when the token has no data.
type MarketContextStore interface {
	GetSentiment(ctx context.Context, token string) (*domain.SentimentScore, error)
	GetSocial(ctx context.Context, token string) (*domain.SocialMetrics, error)
	GetVotes(ctx context.Context, token string) (*domain.VoteTally, error)
	GetDevActivity(ctx context.Context, token string) (*domain.DevActivity, error)
}
