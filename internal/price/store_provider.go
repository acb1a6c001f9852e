package price

import (
	"context"
	"fmt"
	"strings"

	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/storage"
)

// StoreProvider serves ticks from the price tick archive, for offline backtests.
type StoreProvider struct {
	store storage.PriceTickStore
}

// NewStoreProvider creates a new StoreProvider.
func NewStoreProvider(store storage.PriceTickStore) *StoreProvider {
	return &StoreProvider{store: store}
}

// Compile-time interface check.
var _ Provider = (*StoreProvider)(nil)

// Name implements Provider.
func (p *StoreProvider) Name() string { return "store" }

// FetchTicks implements Provider. An empty archive range is an empty series.
func (p *StoreProvider) FetchTicks(ctx context.Context, token string, start, end int64) ([]*domain.PriceTick, error) {
	ticks, err := p.store.GetByTimeRange(ctx, strings.ToUpper(token), start, end)
	if err != nil {
		return nil, fmt.Errorf("read archived ticks for %s: %w", token, err)
	}
	return ticks, nil
}
