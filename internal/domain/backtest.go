package domain

// BacktestConfig is the input of one backtest run.
type BacktestConfig struct {
	Tokens            []string `json:"tokens"` // empty means auto-detect
	WindowHours       int      `json:"window_hours"`
	NotionalPerSignal float64  `json:"notional_per_signal"`
	TakerFeeBps       float64  `json:"taker_fee_bps"`
	SlippageBps       float64  `json:"slippage_bps"`
	StartMs           *int64   `json:"start_ms,omitempty"` // nil means now minus window
}

// CostParams holds the transaction-cost assumptions applied to every trade.
type CostParams struct {
	Notional    float64
	TakerFeeBps float64
	SlippageBps float64
}

// TotalCostBps returns the round-trip cost in basis points (entry + exit).
func (p CostParams) TotalCostBps() float64 {
	return (p.TakerFeeBps + p.SlippageBps) * 2
}

// FeesCost returns the round-trip cost in currency units for one trade.
func (p CostParams) FeesCost() float64 {
	return p.Notional * p.TotalCostBps() / 10000
}

// CoinSummary holds per-token backtest statistics over non-skipped trades.
type CoinSummary struct {
	Token               string  `json:"token"`
	TradeCount          int     `json:"trade_count"`
	SkippedCount        int     `json:"skipped_count"`
	HitRate             float64 `json:"hit_rate"` // percent with NetPnL > 0
	AvgReturnPct        float64 `json:"avg_return_pct"`
	MedianReturnPct     float64 `json:"median_return_pct"`
	CumulativePnL       float64 `json:"cumulative_pnl"`
	CumulativeReturnPct float64 `json:"cumulative_return_pct"` // CumulativePnL / total notional * 100
	MaxDrawdownPct      float64 `json:"max_drawdown_pct"`      // always <= 0
}

// DirectionStats breaks down trades by signal direction.
type DirectionStats struct {
	TradeCount    int     `json:"trade_count"`
	AvgReturnPct  float64 `json:"avg_return_pct"`
	CumulativePnL float64 `json:"cumulative_pnl"`
}

// HourOfDayStats groups trades by UTC hour of entry.
type HourOfDayStats struct {
	Hour         int     `json:"hour"`
	TradeCount   int     `json:"trade_count"`
	AvgReturnPct float64 `json:"avg_return_pct"`
}

// PortfolioStats holds statistics over the union of all coins' non-skipped trades.
type PortfolioStats struct {
	CoinSummary
	VolatilityPct float64                      `json:"volatility_pct"` // population stddev of ReturnPct
	Sharpe        float64                      `json:"sharpe"`
	Sortino       float64                      `json:"sortino"`
	ByDirection   map[Direction]DirectionStats `json:"by_direction"`
	ByHourOfDay   []HourOfDayStats             `json:"by_hour_of_day"`
}
