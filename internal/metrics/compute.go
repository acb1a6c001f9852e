// Package metrics reduces simulated trades into per-coin and portfolio statistics.
// Every function here is pure; no I/O and no shared state.
package metrics

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"whaleflow-lab/internal/domain"
)

// executed returns the non-skipped trades sorted chronologically.
// Sorted by EntryTimeMs ASC, Token ASC, TradeID ASC so order-dependent
// metrics (drawdown) are deterministic across coins.
func executed(trades []domain.SimulatedTrade) []domain.SimulatedTrade {
	out := make([]domain.SimulatedTrade, 0, len(trades))
	for _, t := range trades {
		if !t.Skipped {
			out = append(out, t)
		}
	}
	sortChronological(out)
	return out
}

func sortChronological(trades []domain.SimulatedTrade) {
	sort.SliceStable(trades, func(i, j int) bool {
		if trades[i].EntryTimeMs != trades[j].EntryTimeMs {
			return trades[i].EntryTimeMs < trades[j].EntryTimeMs
		}
		if trades[i].Token != trades[j].Token {
			return trades[i].Token < trades[j].Token
		}
		return trades[i].TradeID < trades[j].TradeID
	})
}

func returnsOf(trades []domain.SimulatedTrade) []float64 {
	out := make([]float64, len(trades))
	for i, t := range trades {
		out[i] = t.ReturnPct
	}
	return out
}

// computeHitRate returns the percentage of trades with NetPnL > 0.
func computeHitRate(trades []domain.SimulatedTrade) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range trades {
		if t.NetPnL > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(trades)) * 100
}

// computeMean calculates arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m, err := stats.Mean(values)
	if err != nil {
		return 0
	}
	return finite(m)
}

// computeMedian returns the median, 0 for empty input.
func computeMedian(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m, err := stats.Median(values)
	if err != nil {
		return 0
	}
	return finite(m)
}

// computeVolatility is the population standard deviation (n denominator).
func computeVolatility(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sd, err := stats.StandardDeviationPopulation(values)
	if err != nil {
		return 0
	}
	return finite(sd)
}

// computeDownsideDeviation is the RMS of negative values only.
// Returns 0 when there are no negative values.
func computeDownsideDeviation(values []float64) float64 {
	sumSq := 0.0
	n := 0
	for _, v := range values {
		if v < 0 {
			sumSq += v * v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sumSq / float64(n))
}

// safeRatio returns num/den, or 0 when den is 0 or the result is not finite.
func safeRatio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return finite(num / den)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// DrawdownState is the accumulator of the drawdown fold.
// Equity starts at 0, so the first peak is 0.
type DrawdownState struct {
	Equity         float64
	Peak           float64
	MaxDrawdownPct float64 // most negative (equity-peak)/totalNotional*100, always <= 0
}

// StepDrawdown folds one trade's net P&L into the state.
func StepDrawdown(s DrawdownState, netPnL, totalNotional float64) DrawdownState {
	s.Equity += netPnL
	if s.Equity > s.Peak {
		s.Peak = s.Equity
	}
	dd := safeRatio(s.Equity-s.Peak, totalNotional) * 100
	if dd < s.MaxDrawdownPct {
		s.MaxDrawdownPct = dd
	}
	return s
}

// computeMaxDrawdownPct reduces chronologically ordered trades with StepDrawdown.
func computeMaxDrawdownPct(trades []domain.SimulatedTrade, totalNotional float64) float64 {
	state := DrawdownState{}
	for _, t := range trades {
		state = StepDrawdown(state, t.NetPnL, totalNotional)
	}
	return state.MaxDrawdownPct
}

func totalNotional(trades []domain.SimulatedTrade) float64 {
	sum := 0.0
	for _, t := range trades {
		sum += t.Notional
	}
	return sum
}

func cumulativePnL(trades []domain.SimulatedTrade) float64 {
	sum := 0.0
	for _, t := range trades {
		sum += t.NetPnL
	}
	return sum
}
