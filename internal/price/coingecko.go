package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/logging"
	"whaleflow-lab/internal/observability"
)

// Default configuration values.
const (
	DefaultBaseURL     = "https://api.coingecko.com/api/v3"
	DefaultTimeout     = 10 * time.Second
	DefaultMaxRetries  = 2
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 8 * time.Second
	DefaultBackoffMult = 2.0
)

// CoinGeckoProvider fetches prices from the CoinGecko REST API.
// All calls go through a circuit breaker so a failing provider is not hammered.
type CoinGeckoProvider struct {
	baseURL     string
	apiKey      string
	client      *http.Client
	symbols     SymbolMap
	breaker     *gobreaker.CircuitBreaker
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	logger      *zap.Logger
}

// CoinGeckoOption configures CoinGeckoProvider.
type CoinGeckoOption func(*CoinGeckoProvider)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) CoinGeckoOption {
	return func(p *CoinGeckoProvider) {
		p.baseURL = strings.TrimRight(u, "/")
	}
}

// WithAPIKey sets the demo API key header.
func WithAPIKey(key string) CoinGeckoOption {
	return func(p *CoinGeckoProvider) {
		p.apiKey = key
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) CoinGeckoOption {
	return func(p *CoinGeckoProvider) {
		if d > 0 {
			p.client.Timeout = d
		}
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(c *http.Client) CoinGeckoOption {
	return func(p *CoinGeckoProvider) {
		p.client = c
	}
}

// WithSymbols replaces the symbol table.
func WithSymbols(m SymbolMap) CoinGeckoOption {
	return func(p *CoinGeckoProvider) {
		p.symbols = m
	}
}

// WithRetry sets retry count and initial delay.
func WithRetry(maxRetries int, delay time.Duration) CoinGeckoOption {
	return func(p *CoinGeckoProvider) {
		p.maxRetries = maxRetries
		p.retryDelay = delay
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) CoinGeckoOption {
	return func(p *CoinGeckoProvider) {
		p.logger = logging.OrNop(l)
	}
}

// NewCoinGeckoProvider creates a new CoinGecko client.
func NewCoinGeckoProvider(opts ...CoinGeckoOption) *CoinGeckoProvider {
	p := &CoinGeckoProvider{
		baseURL:     DefaultBaseURL,
		client:      &http.Client{Timeout: DefaultTimeout},
		symbols:     NewSymbolMap(nil),
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.breaker = newBreaker("coingecko")
	return p
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	st := gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
	}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	return gobreaker.NewCircuitBreaker(st)
}

// Compile-time interface checks.
var (
	_ Provider         = (*CoinGeckoProvider)(nil)
	_ MomentumProvider = (*CoinGeckoProvider)(nil)
)

// Name implements Provider.
func (p *CoinGeckoProvider) Name() string { return "coingecko" }

type marketChartResponse struct {
	Prices [][2]float64 `json:"prices"` // [timestamp_ms, price]
}

// FetchTicks implements Provider using /coins/{id}/market_chart/range.
// Unmapped symbols return ErrUnknownSymbol.
func (p *CoinGeckoProvider) FetchTicks(ctx context.Context, token string, start, end int64) ([]*domain.PriceTick, error) {
	id, ok := p.symbols.Resolve(token)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, token)
	}

	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("from", fmt.Sprintf("%d", start/1000))
	// The API works in seconds; round up so the last millisecond of the range is kept.
	q.Set("to", fmt.Sprintf("%d", (end+999)/1000))
	endpoint := fmt.Sprintf("%s/coins/%s/market_chart/range?%s", p.baseURL, url.PathEscape(id), q.Encode())

	var resp marketChartResponse
	if err := p.get(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("fetch %s market chart: %w", token, err)
	}

	symbol := strings.ToUpper(token)
	ticks := make([]*domain.PriceTick, 0, len(resp.Prices))
	for _, pr := range resp.Prices {
		ts := int64(pr[0])
		if ts < start || ts > end || pr[1] <= 0 {
			continue
		}
		ticks = append(ticks, &domain.PriceTick{Token: symbol, TimestampMs: ts, Price: pr[1]})
	}
	return ticks, nil
}

type marketsEntry struct {
	ID           string   `json:"id"`
	CurrentPrice float64  `json:"current_price"`
	Change1h     *float64 `json:"price_change_percentage_1h_in_currency"`
	Change24h    *float64 `json:"price_change_percentage_24h_in_currency"`
	Change7d     *float64 `json:"price_change_percentage_7d_in_currency"`
	Change30d    *float64 `json:"price_change_percentage_30d_in_currency"`
}

// Momentum implements MomentumProvider using /coins/markets.
func (p *CoinGeckoProvider) Momentum(ctx context.Context, token string) (*domain.PriceMomentum, error) {
	id, ok := p.symbols.Resolve(token)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, token)
	}

	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("ids", id)
	q.Set("price_change_percentage", "1h,24h,7d,30d")
	endpoint := fmt.Sprintf("%s/coins/markets?%s", p.baseURL, q.Encode())

	var entries []marketsEntry
	if err := p.get(ctx, endpoint, &entries); err != nil {
		return nil, fmt.Errorf("fetch %s momentum: %w", token, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s not listed", ErrUnknownSymbol, token)
	}

	e := entries[0]
	return &domain.PriceMomentum{
		Token:     strings.ToUpper(token),
		Price:     e.CurrentPrice,
		Change1h:  e.Change1h,
		Change24h: e.Change24h,
		Change7d:  e.Change7d,
		Change30d: e.Change30d,
	}, nil
}

// get performs a GET through the circuit breaker and decodes JSON into out.
func (p *CoinGeckoProvider) get(ctx context.Context, endpoint string, out any) error {
	start := time.Now()
	body, err := p.breaker.Execute(func() (any, error) {
		return p.getWithRetry(ctx, endpoint)
	})
	observability.RecordPriceFetch(p.Name(), time.Since(start).Seconds(), err)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body.([]byte), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// getWithRetry retries transport errors, 429 and 5xx with exponential backoff.
// Other non-2xx statuses fail immediately.
func (p *CoinGeckoProvider) getWithRetry(ctx context.Context, endpoint string) ([]byte, error) {
	delay := p.retryDelay
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * p.backoffMult)
			if delay > p.maxDelay {
				delay = p.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if p.apiKey != "" {
			req.Header.Set("x-cg-demo-api-key", p.apiKey)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("%w: %d", ErrProviderStatus, resp.StatusCode)
			p.logger.Debug("retrying price provider call",
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt),
			)
			continue
		default:
			return nil, fmt.Errorf("%w: %d: %s", ErrProviderStatus, resp.StatusCode, truncate(string(body), 200))
		}
	}

	if errors.Is(lastErr, context.DeadlineExceeded) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
