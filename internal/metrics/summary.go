package metrics

import (
	"fmt"
	"sort"
	"time"

	"whaleflow-lab/internal/domain"
)

// DefaultTopN is the number of best and worst trades reported.
const DefaultTopN = 5

// SummarizeCoin computes statistics over one coin's non-skipped trades.
// Zero executed trades yield a summary with zero statistics, never NaN.
func SummarizeCoin(token string, trades []domain.SimulatedTrade) domain.CoinSummary {
	summary := summarize(executed(trades))
	summary.Token = token
	summary.SkippedCount = countSkipped(trades)
	return summary
}

func summarize(sorted []domain.SimulatedTrade) domain.CoinSummary {
	n := len(sorted)
	if n == 0 {
		return domain.CoinSummary{}
	}

	returns := returnsOf(sorted)
	notional := totalNotional(sorted)
	pnl := cumulativePnL(sorted)

	return domain.CoinSummary{
		TradeCount:          n,
		HitRate:             computeHitRate(sorted),
		AvgReturnPct:        computeMean(returns),
		MedianReturnPct:     computeMedian(returns),
		CumulativePnL:       pnl,
		CumulativeReturnPct: safeRatio(pnl, notional) * 100,
		MaxDrawdownPct:      computeMaxDrawdownPct(sorted, notional),
	}
}

// Portfolio computes statistics over the union of all coins' non-skipped trades.
func Portfolio(trades []domain.SimulatedTrade) domain.PortfolioStats {
	sorted := executed(trades)
	returns := returnsOf(sorted)

	p := domain.PortfolioStats{
		CoinSummary: summarize(sorted),
		ByDirection: byDirection(sorted),
		ByHourOfDay: byHourOfDay(sorted),
	}
	p.Token = "PORTFOLIO"
	p.SkippedCount = countSkipped(trades)

	avg := computeMean(returns)
	p.VolatilityPct = computeVolatility(returns)
	p.Sharpe = safeRatio(avg, p.VolatilityPct)
	p.Sortino = safeRatio(avg, computeDownsideDeviation(returns))
	return p
}

func byDirection(trades []domain.SimulatedTrade) map[domain.Direction]domain.DirectionStats {
	grouped := make(map[domain.Direction][]domain.SimulatedTrade)
	for _, t := range trades {
		grouped[t.Direction] = append(grouped[t.Direction], t)
	}

	out := make(map[domain.Direction]domain.DirectionStats, 2)
	for _, dir := range []domain.Direction{domain.DirectionBullish, domain.DirectionBearish} {
		group := grouped[dir]
		out[dir] = domain.DirectionStats{
			TradeCount:    len(group),
			AvgReturnPct:  computeMean(returnsOf(group)),
			CumulativePnL: cumulativePnL(group),
		}
	}
	return out
}

// byHourOfDay groups by UTC hour of entry, sorted by hour; empty hours are omitted.
func byHourOfDay(trades []domain.SimulatedTrade) []domain.HourOfDayStats {
	grouped := make(map[int][]float64)
	for _, t := range trades {
		h := time.UnixMilli(t.EntryTimeMs).UTC().Hour()
		grouped[h] = append(grouped[h], t.ReturnPct)
	}

	hours := make([]int, 0, len(grouped))
	for h := range grouped {
		hours = append(hours, h)
	}
	sort.Ints(hours)

	out := make([]domain.HourOfDayStats, 0, len(hours))
	for _, h := range hours {
		out = append(out, domain.HourOfDayStats{
			Hour:         h,
			TradeCount:   len(grouped[h]),
			AvgReturnPct: computeMean(grouped[h]),
		})
	}
	return out
}

// TopTrades returns up to n non-skipped trades with the highest NetPnL.
func TopTrades(trades []domain.SimulatedTrade, n int) []domain.SimulatedTrade {
	return rankTrades(trades, n, true)
}

// WorstTrades returns up to n non-skipped trades with the lowest NetPnL.
func WorstTrades(trades []domain.SimulatedTrade, n int) []domain.SimulatedTrade {
	return rankTrades(trades, n, false)
}

func rankTrades(trades []domain.SimulatedTrade, n int, best bool) []domain.SimulatedTrade {
	sorted := executed(trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		if best {
			return sorted[i].NetPnL > sorted[j].NetPnL
		}
		return sorted[i].NetPnL < sorted[j].NetPnL
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// DataIssues returns one diagnostic per skipped trade, in chronological order.
func DataIssues(trades []domain.SimulatedTrade) []string {
	var skipped []domain.SimulatedTrade
	for _, t := range trades {
		if t.Skipped {
			skipped = append(skipped, t)
		}
	}
	sortChronological(skipped)

	issues := make([]string, 0, len(skipped))
	for _, t := range skipped {
		issues = append(issues, fmt.Sprintf("%s: %s trade at %s skipped (%s)",
			t.Token,
			t.Direction,
			time.UnixMilli(t.EntryTimeMs).UTC().Format(time.RFC3339),
			t.SkipReason,
		))
	}
	return issues
}

func countSkipped(trades []domain.SimulatedTrade) int {
	n := 0
	for _, t := range trades {
		if t.Skipped {
			n++
		}
	}
	return n
}
