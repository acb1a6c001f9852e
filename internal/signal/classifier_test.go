package signal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whaleflow-lab/internal/domain"
)

func agg(buy, sell float64, buyCount, sellCount int) domain.FlowAggregate {
	return domain.FlowAggregate{
		BuyVolume:  buy,
		SellVolume: sell,
		BuyCount:   buyCount,
		SellCount:  sellCount,
		TotalCount: buyCount + sellCount,
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		agg       domain.FlowAggregate
		want      domain.Direction
		reasonHas string
	}{
		{"no transactions", agg(0, 0, 0, 0), domain.DirectionNone, domain.ReasonNoData},
		{"bullish", agg(20000, 5000, 2, 1), domain.DirectionBullish, "80.0% buy pressure, $15.0K net inflow"},
		{"bearish", agg(5000, 20000, 1, 2), domain.DirectionBearish, "80.0% sell pressure, $15.0K net outflow"},
		{"strong pct but small flow", agg(9000, 1000, 1, 1), domain.DirectionNone, ReasonNoSignal},
		{"large flow but balanced pct", agg(110000, 99000, 3, 3), domain.DirectionNone, ReasonNoSignal},
		{"exactly 55 pct is not bullish", agg(55000, 45000, 1, 1), domain.DirectionNone, ReasonNoSignal},
		{"exactly 10000 net is not bullish", agg(20000, 10000, 1, 1), domain.DirectionNone, ReasonNoSignal},
		{"exactly -10000 net is not bearish", agg(10000, 20000, 1, 1), domain.DirectionNone, ReasonNoSignal},
		{"zero volume with transactions is neutral", agg(0, 0, 2, 0), domain.DirectionNone, "buy 50.0%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, reason := Classify(tt.agg)
			assert.Equal(t, tt.want, dir)
			assert.Contains(t, reason, tt.reasonHas)
		})
	}
}

func TestClassify_NoDataReasonIsExact(t *testing.T) {
	_, reason := Classify(domain.FlowAggregate{})
	assert.Equal(t, "NO_DATA", reason)
}

func TestGenerate_DenseArray(t *testing.T) {
	buckets := domain.HourBuckets(1_700_000_000_000, 24)
	aggregates := make([]domain.FlowAggregate, 24)
	aggregates[3] = agg(20000, 5000, 2, 1)
	aggregates[7] = agg(5000, 20000, 1, 2)

	signals := Generate("BTC", buckets, aggregates)

	require.Len(t, signals, 24)
	for i, s := range signals {
		assert.Equal(t, i, s.HourIndex)
		assert.Equal(t, buckets[i].StartMs, s.BucketStartMs)
		assert.Equal(t, "BTC", s.Token)
	}
	assert.Equal(t, domain.DirectionBullish, signals[3].Signal)
	assert.Equal(t, domain.DirectionBearish, signals[7].Signal)
	assert.Equal(t, 2, CountTradeable(signals))
	assert.Equal(t, domain.ReasonNoData, signals[0].Reason)
}

func TestGenerate_ShortAggregatesAreNoData(t *testing.T) {
	signals := Generate("ETH", domain.HourBuckets(0, 3), nil)

	require.Len(t, signals, 3)
	for _, s := range signals {
		assert.Equal(t, domain.DirectionNone, s.Signal)
		assert.True(t, strings.EqualFold(s.Reason, domain.ReasonNoData))
	}
}
