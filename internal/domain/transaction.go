package domain

import "strings"

// RawTransaction represents one large on-chain transfer attributed to a whale.
// Corresponds to whale_transactions table in PostgreSQL.
type RawTransaction struct {
	Hash             string  // unique transaction hash
	Timestamp        int64   // Unix timestamp in milliseconds
	Symbol           string  // token symbol, upper case
	Classification   string  // BUY | SELL | TRANSFER | DEFI | "" (unclassified)
	USDValue         float64 // transfer value in USD (>= 0)
	CounterpartyType string  // CEX | DEX | OTHER
}

// Transaction classification constants
const (
	ClassificationBuy      = "BUY"
	ClassificationSell     = "SELL"
	ClassificationTransfer = "TRANSFER"
	ClassificationDeFi     = "DEFI"
)

// Counterparty type constants
const (
	CounterpartyCEX   = "CEX"
	CounterpartyDEX   = "DEX"
	CounterpartyOther = "OTHER"
)

// IsBuy reports whether the transaction is classified as a buy (case-insensitive).
func (t *RawTransaction) IsBuy() bool {
	return strings.EqualFold(t.Classification, ClassificationBuy)
}

// IsSell reports whether the transaction is classified as a sell (case-insensitive).
func (t *RawTransaction) IsSell() bool {
	return strings.EqualFold(t.Classification, ClassificationSell)
}

// IsSignalEligible reports whether the transaction contributes to signal math:
// BUY or SELL against a CEX or DEX counterparty. Everything else is noise.
func (t *RawTransaction) IsSignalEligible() bool {
	if !t.IsBuy() && !t.IsSell() {
		return false
	}
	return strings.EqualFold(t.CounterpartyType, CounterpartyCEX) ||
		strings.EqualFold(t.CounterpartyType, CounterpartyDEX)
}
