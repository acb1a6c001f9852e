package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"whaleflow-lab/internal/cache"
	"whaleflow-lab/internal/logging"
	"whaleflow-lab/internal/observability"
)

// DefaultFXRate is the fallback conversion rate in USD per GBP.
const DefaultFXRate = 1.27

const fxCacheKey = "fx:usd:gbp"

// FXOptions configures an FXService.
type FXOptions struct {
	URL          string // returns {"rates":{"USD":<usd per gbp>}}
	FallbackRate float64
	Timeout      time.Duration
	Cache        cache.Cache
	CacheTTL     time.Duration
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// FXService resolves the single USD->GBP conversion rate of a run.
type FXService struct {
	url      string
	fallback float64
	client   *http.Client
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewFXService creates a new FXService.
func NewFXService(opts FXOptions) *FXService {
	fallback := opts.FallbackRate
	if fallback <= 0 {
		fallback = DefaultFXRate
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &FXService{
		url:      opts.URL,
		fallback: fallback,
		client:   client,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		logger:   logging.OrNop(opts.Logger),
	}
}

type fxCacheEntry struct {
	Rate float64 `json:"rate"`
}

type fxResponse struct {
	Rates map[string]float64 `json:"rates"`
}

// Rate returns USD per GBP. It never fails: any error falls back to the
// configured constant.
func (s *FXService) Rate(ctx context.Context) float64 {
	if s.cache != nil {
		var entry fxCacheEntry
		found, err := s.cache.GetJSON(ctx, fxCacheKey, &entry)
		if err == nil && found && entry.Rate > 0 {
			return entry.Rate
		}
	}

	if s.url == "" {
		return s.fallback
	}

	rate, err := s.fetch(ctx)
	if err != nil {
		s.logger.Warn("fx rate unavailable, using fallback",
			zap.String("source", s.url),
			zap.Float64("fallback", s.fallback),
			zap.Error(err),
		)
		observability.RecordFXFallback()
		return s.fallback
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if err := s.cache.SetJSON(ctx, fxCacheKey, fxCacheEntry{Rate: rate}, s.cacheTTL); err != nil {
			s.logger.Debug("fx cache write failed", zap.Error(err))
		}
	}
	return rate
}

func (s *FXService) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("%w: %d", ErrProviderStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}

	var parsed fxResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	rate, ok := parsed.Rates["USD"]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("response has no positive USD rate")
	}
	return rate, nil
}
