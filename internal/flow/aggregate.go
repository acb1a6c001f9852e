// Package flow reduces whale transactions to per-hour buy/sell pressure.
package flow

import (
	"whaleflow-lab/internal/domain"
)

// Aggregate partitions transactions into BUY and SELL (case-insensitive) and sums
// USD value and count per side. Other classifications are ignored.
// An empty input yields the zero aggregate, which callers treat as "no data".
func Aggregate(txs []*domain.RawTransaction) domain.FlowAggregate {
	var agg domain.FlowAggregate
	for _, tx := range txs {
		switch {
		case tx.IsBuy():
			agg.BuyVolume += tx.USDValue
			agg.BuyCount++
		case tx.IsSell():
			agg.SellVolume += tx.USDValue
			agg.SellCount++
		}
	}
	agg.TotalCount = agg.BuyCount + agg.SellCount
	return agg
}
