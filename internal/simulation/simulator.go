// Package simulation turns hourly signals into simulated one-hour trades.
package simulation

import (
	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/idhash"
)

// Simulate walks signals[0..N-2] and emits one trade per tradeable signal.
// Entry is the close at signals[h].BucketStartMs and exit the close at
// signals[h+1].BucketStartMs. The last hour has no exit and never trades.
// Signals must be dense and ordered by HourIndex.
//
// Simulate performs no I/O; identical inputs yield identical output.
func Simulate(
	runID string,
	signals []domain.HourlySignal,
	prices []domain.PricePoint,
	costs domain.CostParams,
) []domain.SimulatedTrade {
	if len(signals) < 2 {
		return nil
	}

	idx := indexPrices(prices)
	var trades []domain.SimulatedTrade

	for h := 0; h < len(signals)-1; h++ {
		sig := signals[h]
		if !sig.Signal.IsTradeable() {
			continue
		}
		entryMs := sig.BucketStartMs
		exitMs := signals[h+1].BucketStartMs

		trade := domain.SimulatedTrade{
			TradeID:     idhash.ComputeTradeID(runID, sig.Token, entryMs, string(sig.Signal)),
			RunID:       runID,
			Token:       sig.Token,
			EntryTimeMs: entryMs,
			ExitTimeMs:  exitMs,
			Direction:   sig.Signal,
			Notional:    costs.Notional,
		}

		entry, okEntry := idx.priceAt(entryMs)
		exit, okExit := idx.priceAt(exitMs)
		if okEntry {
			trade.EntryPrice = &entry
		}
		if okExit {
			trade.ExitPrice = &exit
		}
		if !okEntry || !okExit {
			trade.Skipped = true
			trade.SkipReason = domain.SkipReasonMissingPrice
			trades = append(trades, trade)
			continue
		}

		fillPnL(&trade, entry, exit, costs)
		trades = append(trades, trade)
	}

	return trades
}

// fillPnL sets gross, fees, net and return on a priced trade.
func fillPnL(t *domain.SimulatedTrade, entry, exit float64, costs domain.CostParams) {
	ratio := exit / entry
	switch t.Direction {
	case domain.DirectionBullish:
		t.GrossPnL = costs.Notional * (ratio - 1)
	case domain.DirectionBearish:
		t.GrossPnL = costs.Notional * (1 - ratio)
	}
	t.FeesCost = costs.FeesCost()
	t.NetPnL = t.GrossPnL - t.FeesCost
	if costs.Notional > 0 {
		t.ReturnPct = t.NetPnL / costs.Notional * 100
	}
}
