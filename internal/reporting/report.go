package reporting

import (
	"time"

	"whaleflow-lab/internal/domain"
)

// Verdict strings. Advisory text only.
const (
	VerdictValid        = "SIGNALS VALID"
	VerdictInvalid      = "SIGNALS INVALID"
	VerdictInconclusive = "INCONCLUSIVE"
)

// InvalidThreshold is the cumulative P&L below which signals are judged invalid.
const InvalidThreshold = -50.0

// Currency is the target currency of every money field in a report.
const Currency = "GBP"

// BacktestReport is the computed projection of one backtest run.
type BacktestReport struct {
	// Metadata
	RunID         string                `json:"run_id"`
	GeneratedAt   time.Time             `json:"generated_at"`
	Config        domain.BacktestConfig `json:"config"`
	WindowStartMs int64                 `json:"window_start_ms"`
	WindowEndMs   int64                 `json:"window_end_ms"`
	FXRate        float64               `json:"fx_rate"` // USD per unit of Currency
	Currency      string                `json:"currency"`

	// Statistics
	PerCoin   map[string]domain.CoinSummary `json:"per_coin"`
	Portfolio domain.PortfolioStats         `json:"portfolio"`

	// Diagnostics
	SignalCounts map[string]int          `json:"signal_counts"` // tradeable signals per token
	TopTrades    []domain.SimulatedTrade `json:"top_trades"`
	WorstTrades  []domain.SimulatedTrade `json:"worst_trades"`
	DataIssues   []string                `json:"data_issues"`

	Summary string `json:"summary"`
	Verdict string `json:"verdict"`
}

// RunResult is everything a backtest run produced, before reduction.
type RunResult struct {
	RunID         string
	Config        domain.BacktestConfig
	WindowStartMs int64
	WindowEndMs   int64
	FXRate        float64
	Tokens        []string                           // requested or auto-detected, in run order
	Trades        map[string][]domain.SimulatedTrade // by token
	SignalCounts  map[string]int
	Issues        []string // upstream degradation (flow or price fetch)
}

// Verdict classifies cumulative P&L.
func Verdict(totalPnL float64) string {
	switch {
	case totalPnL > 0:
		return VerdictValid
	case totalPnL < InvalidThreshold:
		return VerdictInvalid
	default:
		return VerdictInconclusive
	}
}
