// Package price fetches historical price ticks and resamples them to hourly closes.
package price

import (
	"context"
	"errors"

	"whaleflow-lab/internal/domain"
)

var (
	// ErrUnknownSymbol is returned when a token has no provider identifier.
	// Callers treat it as "no data", not as a failure.
	ErrUnknownSymbol = errors.New("unknown price symbol")

	// ErrProviderStatus is returned on a non-2xx provider response.
	ErrProviderStatus = errors.New("price provider returned non-2xx status")
)

// Provider returns raw price ticks in the provider base currency (USD).
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// FetchTicks returns ticks for token within [start, end] in milliseconds, ordered by time.
	FetchTicks(ctx context.Context, token string, start, end int64) ([]*domain.PriceTick, error)
}

// MomentumProvider returns multi-horizon price changes for a token.
type MomentumProvider interface {
	Momentum(ctx context.Context, token string) (*domain.PriceMomentum, error)
}
