package price

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/storage/memory"
)

// fakeProvider serves canned ticks and records call times.
type fakeProvider struct {
	ticks map[string][]*domain.PriceTick
	fail  map[string]error
	calls []time.Time
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) FetchTicks(_ context.Context, token string, _, _ int64) ([]*domain.PriceTick, error) {
	p.calls = append(p.calls, time.Now())
	if err := p.fail[token]; err != nil {
		return nil, err
	}
	return p.ticks[token], nil
}

// mapCache is an in-process cache.Cache.
type mapCache struct {
	data map[string][]byte
}

func (c *mapCache) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (c *mapCache) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = b
	return nil
}

func TestFetcher_FetchAll_CapturesPerTokenFailures(t *testing.T) {
	provider := &fakeProvider{
		ticks: map[string][]*domain.PriceTick{
			"BTC": {{Token: "BTC", TimestampMs: 0, Price: 127}},
			"SOL": {{Token: "SOL", TimestampMs: domain.HourMs, Price: 12.7}},
		},
		fail: map[string]error{
			"ETH":  errors.New("timeout"),
			"NOPE": ErrUnknownSymbol,
		},
	}
	f := NewFetcher(FetcherOptions{Provider: provider})

	results, err := f.FetchAll(context.Background(), []string{"BTC", "ETH", "NOPE", "SOL"}, 0, 2*domain.HourMs, 1.27)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Len(t, results[0].Points, 1)
	assert.InDelta(t, 100.0, results[0].Points[0].Close, 1e-9)

	assert.Empty(t, results[1].Points)
	assert.Error(t, results[1].Err)

	assert.Empty(t, results[2].Points)
	assert.ErrorIs(t, results[2].Err, ErrUnknownSymbol)

	assert.Len(t, results[3].Points, 1)
	assert.InDelta(t, 10.0, results[3].Points[0].Close, 1e-9)
}

func TestFetcher_FetchAll_SpacesProviderCalls(t *testing.T) {
	provider := &fakeProvider{}
	f := NewFetcher(FetcherOptions{Provider: provider, CallDelay: 30 * time.Millisecond})

	_, err := f.FetchAll(context.Background(), []string{"A", "B", "C"}, 0, 1, 1)
	require.NoError(t, err)
	require.Len(t, provider.calls, 3)

	for i := 1; i < len(provider.calls); i++ {
		gap := provider.calls[i].Sub(provider.calls[i-1])
		assert.GreaterOrEqual(t, gap, 25*time.Millisecond)
	}
}

func TestFetcher_FetchAll_CancelledContext(t *testing.T) {
	f := NewFetcher(FetcherOptions{Provider: &fakeProvider{}, CallDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.FetchAll(ctx, []string{"BTC"}, 0, 1, 1)
	assert.Error(t, err)
}

func TestFetcher_CacheAndArchive(t *testing.T) {
	provider := &fakeProvider{
		ticks: map[string][]*domain.PriceTick{
			"BTC": {{Token: "BTC", TimestampMs: 5, Price: 2}},
		},
	}
	archive := memory.NewPriceTickStore()
	c := &mapCache{data: map[string][]byte{}}
	f := NewFetcher(FetcherOptions{Provider: provider, Archive: archive, Cache: c, CacheTTL: time.Minute})
	ctx := context.Background()

	first, err := f.FetchAll(ctx, []string{"BTC"}, 0, domain.HourMs, 1)
	require.NoError(t, err)
	second, err := f.FetchAll(ctx, []string{"BTC"}, 0, domain.HourMs, 1)
	require.NoError(t, err)

	assert.Len(t, provider.calls, 1, "second run must be served from cache")
	assert.Equal(t, first[0].Points, second[0].Points)

	archived, err := archive.GetByTimeRange(ctx, "BTC", 0, domain.HourMs)
	require.NoError(t, err)
	assert.Len(t, archived, 1)
}

func TestFetcher_ArchiveSkipsAlreadyStoredTicks(t *testing.T) {
	archive := memory.NewPriceTickStore()
	ctx := context.Background()
	require.NoError(t, archive.InsertBulk(ctx, []*domain.PriceTick{{Token: "BTC", TimestampMs: 1, Price: 1}}))

	provider := &fakeProvider{
		ticks: map[string][]*domain.PriceTick{
			"BTC": {
				{Token: "BTC", TimestampMs: 1, Price: 1},
				{Token: "BTC", TimestampMs: 2, Price: 2},
			},
		},
	}
	f := NewFetcher(FetcherOptions{Provider: provider, Archive: archive})

	_, err := f.FetchAll(ctx, []string{"BTC"}, 0, 10, 1)
	require.NoError(t, err)

	archived, err := archive.GetByTimeRange(ctx, "BTC", 0, 10)
	require.NoError(t, err)
	assert.Len(t, archived, 2)
}

func TestStoreProvider(t *testing.T) {
	archive := memory.NewPriceTickStore()
	ctx := context.Background()
	require.NoError(t, archive.InsertBulk(ctx, []*domain.PriceTick{
		{Token: "ETH", TimestampMs: 100, Price: 3000},
		{Token: "ETH", TimestampMs: 200, Price: 3010},
	}))

	p := NewStoreProvider(archive)
	ticks, err := p.FetchTicks(ctx, "eth", 0, 150)
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Equal(t, 3000.0, ticks[0].Price)
	assert.Equal(t, "store", p.Name())
}

func TestFetcher_FetchAll_LimiterBeyondDeadline(t *testing.T) {
	provider := &fakeProvider{}
	f := NewFetcher(FetcherOptions{Provider: provider, CallDelay: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// The second slot falls after the deadline, so Wait refuses without waiting.
	started := time.Now()
	_, err := f.FetchAll(ctx, []string{"A", "B"}, 0, 1, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, ctx.Err(), "refusal happens before the deadline")
	assert.Less(t, time.Since(started), 500*time.Millisecond)
	assert.Len(t, provider.calls, 1)
}

func TestFetcher_FetchAll_LimiterWithoutDeadline(t *testing.T) {
	err := limiterErr(context.Background(), errors.New("rate: burst exceeded"))
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
}
