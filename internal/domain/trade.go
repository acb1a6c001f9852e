package domain

// SimulatedTrade is one entry/exit pair driven by one hourly signal.
// Corresponds to simulated_trades table in PostgreSQL.
type SimulatedTrade struct {
	TradeID     string    `json:"trade_id"` // deterministic hash
	RunID       string    `json:"run_id"`
	Token       string    `json:"token"`
	EntryTimeMs int64     `json:"entry_time_ms"`
	ExitTimeMs  int64     `json:"exit_time_ms"`
	Direction   Direction `json:"direction"`

	EntryPrice *float64 `json:"entry_price"` // nil when unknown
	ExitPrice  *float64 `json:"exit_price"`  // nil when unknown
	Notional   float64  `json:"notional"`

	GrossPnL  float64 `json:"gross_pnl"`
	FeesCost  float64 `json:"fees_cost"` // taker fee + slippage, round trip
	NetPnL    float64 `json:"net_pnl"`
	ReturnPct float64 `json:"return_pct"`

	Skipped    bool   `json:"skipped"`
	SkipReason string `json:"skip_reason,omitempty"`
}

// Skip reason codes
const (
	SkipReasonMissingPrice = "MISSING_PRICE_DATA"
)
