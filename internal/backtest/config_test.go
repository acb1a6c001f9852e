package backtest

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"whaleflow-lab/internal/domain"
)

func TestNormalizeTokens(t *testing.T) {
	got := normalizeTokens([]string{"btc", " ETH ", "BTC", "sol"})
	assert.Equal(t, []string{"BTC", "ETH", "SOL"}, got)
	assert.Empty(t, normalizeTokens(nil))
}

func TestCostParams(t *testing.T) {
	c := costParams(baseConfig())
	assert.Equal(t, 30.0, c.TotalCostBps())
	assert.InDelta(t, 0.30, c.FeesCost(), 1e-12)
}

func TestValidate_Accepts(t *testing.T) {
	assert.NoError(t, Validate(baseConfig("BTC")))
	cfg := baseConfig()
	cfg.StartMs = nil
	assert.NoError(t, Validate(cfg))
}

func TestValidate_RejectsNonFiniteCosts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.BacktestConfig)
	}{
		{"fee +Inf", func(c *domain.BacktestConfig) { c.TakerFeeBps = math.Inf(1) }},
		{"fee NaN", func(c *domain.BacktestConfig) { c.TakerFeeBps = math.NaN() }},
		{"fee negative", func(c *domain.BacktestConfig) { c.TakerFeeBps = -1 }},
		{"slippage +Inf", func(c *domain.BacktestConfig) { c.SlippageBps = math.Inf(1) }},
		{"slippage -Inf", func(c *domain.BacktestConfig) { c.SlippageBps = math.Inf(-1) }},
		{"notional +Inf", func(c *domain.BacktestConfig) { c.NotionalPerSignal = math.Inf(1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig("BTC")
			tt.mutate(&cfg)
			err := Validate(cfg)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}
