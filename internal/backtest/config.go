package backtest

import (
	"fmt"
	"math"
	"strings"

	"whaleflow-lab/internal/domain"
)

// MaxWindowHours bounds a single run to 30 days of hourly buckets.
const MaxWindowHours = 24 * 30

// Validate checks cfg before any I/O.
func Validate(cfg domain.BacktestConfig) error {
	if cfg.WindowHours <= 0 {
		return fmt.Errorf("%w: window_hours must be positive, got %d", ErrInvalidConfig, cfg.WindowHours)
	}
	if cfg.WindowHours > MaxWindowHours {
		return fmt.Errorf("%w: window_hours must be at most %d, got %d", ErrInvalidConfig, MaxWindowHours, cfg.WindowHours)
	}
	if !(cfg.NotionalPerSignal > 0) || math.IsInf(cfg.NotionalPerSignal, 0) {
		return fmt.Errorf("%w: notional_per_signal must be positive, got %v", ErrInvalidConfig, cfg.NotionalPerSignal)
	}
	if !isFiniteNonNegative(cfg.TakerFeeBps) {
		return fmt.Errorf("%w: taker_fee_bps must be finite and non-negative, got %v", ErrInvalidConfig, cfg.TakerFeeBps)
	}
	if !isFiniteNonNegative(cfg.SlippageBps) {
		return fmt.Errorf("%w: slippage_bps must be finite and non-negative, got %v", ErrInvalidConfig, cfg.SlippageBps)
	}
	if cfg.StartMs != nil && *cfg.StartMs < 0 {
		return fmt.Errorf("%w: start_ms must be non-negative, got %d", ErrInvalidConfig, *cfg.StartMs)
	}
	for _, t := range cfg.Tokens {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("%w: empty token symbol", ErrInvalidConfig)
		}
	}
	return nil
}

func isFiniteNonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}

// normalizeTokens upper-cases, trims and de-duplicates, keeping first-seen order.
func normalizeTokens(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.ToUpper(strings.TrimSpace(t))
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// costParams extracts the cost assumptions of cfg.
func costParams(cfg domain.BacktestConfig) domain.CostParams {
	return domain.CostParams{
		Notional:    cfg.NotionalPerSignal,
		TakerFeeBps: cfg.TakerFeeBps,
		SlippageBps: cfg.SlippageBps,
	}
}
