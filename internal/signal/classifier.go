// Package signal classifies hourly whale flow into directional signals.
package signal

import (
	"fmt"

	"whaleflow-lab/internal/domain"
)

// Classification thresholds.
const (
	BullishBuyPct   = 55.0
	BearishBuyPct   = 45.0
	MinNetFlowUSD   = 10000.0
	ReasonNoSignal  = "insufficient signal"
	thousandDivisor = 1000.0
)

// Classify labels one hour of aggregated flow. Rules apply in priority order:
// no transactions, bullish pressure, bearish pressure, otherwise no signal.
func Classify(agg domain.FlowAggregate) (domain.Direction, string) {
	if agg.TotalCount == 0 {
		return domain.DirectionNone, domain.ReasonNoData
	}

	buyPct := agg.BuyPct()
	netFlow := agg.NetFlow()

	switch {
	case buyPct > BullishBuyPct && netFlow > MinNetFlowUSD:
		return domain.DirectionBullish, fmt.Sprintf(
			"%.1f%% buy pressure, $%.1fK net inflow", buyPct, netFlow/thousandDivisor)
	case buyPct < BearishBuyPct && netFlow < -MinNetFlowUSD:
		return domain.DirectionBearish, fmt.Sprintf(
			"%.1f%% sell pressure, $%.1fK net outflow", 100-buyPct, -netFlow/thousandDivisor)
	default:
		return domain.DirectionNone, fmt.Sprintf(
			"%s (buy %.1f%%, net $%.1fK)", ReasonNoSignal, buyPct, netFlow/thousandDivisor)
	}
}

// Generate produces exactly one HourlySignal per bucket, in bucket order.
// aggregates[i] must belong to buckets[i]; a missing aggregate counts as no data.
func Generate(token string, buckets []domain.HourBucket, aggregates []domain.FlowAggregate) []domain.HourlySignal {
	signals := make([]domain.HourlySignal, len(buckets))
	for i, b := range buckets {
		var agg domain.FlowAggregate
		if i < len(aggregates) {
			agg = aggregates[i]
		}
		dir, reason := Classify(agg)
		signals[i] = domain.HourlySignal{
			Token:         token,
			HourIndex:     b.Index,
			BucketStartMs: b.StartMs,
			Signal:        dir,
			BuyPct:        agg.BuyPct(),
			NetFlowUSD:    agg.NetFlow(),
			TxCount:       agg.TotalCount,
			Reason:        reason,
		}
	}
	return signals
}

// CountTradeable returns the number of signals with a direction.
func CountTradeable(signals []domain.HourlySignal) int {
	n := 0
	for _, s := range signals {
		if s.Signal.IsTradeable() {
			n++
		}
	}
	return n
}
