package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"whaleflow-lab/internal/domain"
)

func TestComputeVolatility_Population(t *testing.T) {
	// values 2,4,4,4,5,5,7,9: mean 5, population stddev 2
	got := computeVolatility([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 2.0, got, 1e-12)
}

func TestComputeVolatility_Empty(t *testing.T) {
	assert.Equal(t, 0.0, computeVolatility(nil))
}

func TestComputeMedian(t *testing.T) {
	assert.Equal(t, 0.0, computeMedian(nil))
	assert.Equal(t, 3.0, computeMedian([]float64{5, 1, 3}))
	assert.Equal(t, 2.5, computeMedian([]float64{4, 1, 2, 3}))
}

func TestComputeDownsideDeviation(t *testing.T) {
	assert.Equal(t, 0.0, computeDownsideDeviation([]float64{1, 2, 3}))
	// RMS of -3 and -4 = sqrt((9+16)/2)
	assert.InDelta(t, math.Sqrt(12.5), computeDownsideDeviation([]float64{-3, 5, -4}), 1e-12)
}

func TestSafeRatio(t *testing.T) {
	assert.Equal(t, 0.0, safeRatio(1, 0))
	assert.Equal(t, 0.0, safeRatio(math.Inf(1), 1))
	assert.Equal(t, 2.0, safeRatio(4, 2))
}

func TestStepDrawdown_Fold(t *testing.T) {
	pnls := []float64{10, -5, -10, 20, -30}
	state := DrawdownState{}
	prev := 0.0
	for _, p := range pnls {
		state = StepDrawdown(state, p, 100)
		assert.LessOrEqual(t, state.MaxDrawdownPct, 0.0)
		assert.LessOrEqual(t, state.MaxDrawdownPct, prev, "drawdown must be non-increasing")
		prev = state.MaxDrawdownPct
	}
	// equity: 10, 5, -5, 15, -15; peaks 10,10,10,15,15; worst = -30
	assert.InDelta(t, -30.0, state.MaxDrawdownPct, 1e-12)
	assert.InDelta(t, -15.0, state.Equity, 1e-12)
	assert.InDelta(t, 15.0, state.Peak, 1e-12)
}

func TestStepDrawdown_LossFromStart(t *testing.T) {
	// First peak is zero equity, so an opening loss is a drawdown.
	state := StepDrawdown(DrawdownState{}, -4, 200)
	assert.InDelta(t, -2.0, state.MaxDrawdownPct, 1e-12)
}

func TestStepDrawdown_ZeroNotional(t *testing.T) {
	state := StepDrawdown(DrawdownState{}, -4, 0)
	assert.Equal(t, 0.0, state.MaxDrawdownPct)
}

func TestExecuted_FiltersAndOrders(t *testing.T) {
	trades := []domain.SimulatedTrade{
		{TradeID: "b", Token: "ETH", EntryTimeMs: 2000, NetPnL: 1},
		{TradeID: "s", Token: "BTC", EntryTimeMs: 1000, Skipped: true},
		{TradeID: "a", Token: "BTC", EntryTimeMs: 2000, NetPnL: -1},
		{TradeID: "c", Token: "BTC", EntryTimeMs: 1000, NetPnL: 2},
	}
	got := executed(trades)
	ids := make([]string, len(got))
	for i, tr := range got {
		ids[i] = tr.TradeID
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
	assert.Len(t, trades, 4, "input must not be modified")
}

func TestComputeHitRate(t *testing.T) {
	assert.Equal(t, 0.0, computeHitRate(nil))
	trades := []domain.SimulatedTrade{{NetPnL: 1}, {NetPnL: 0}, {NetPnL: -1}, {NetPnL: 3}}
	assert.Equal(t, 50.0, computeHitRate(trades))
}
