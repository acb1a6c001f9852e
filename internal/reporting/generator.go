// Package reporting reduces a backtest run into a BacktestReport and renders it.
package reporting

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"whaleflow-lab/internal/domain"
	"whaleflow-lab/internal/metrics"
)

// Generator produces reports from run results.
type Generator struct {
	now func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator() *Generator {
	return &Generator{
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report. Every requested token gets a per-coin entry,
// including tokens with no trades.
func (g *Generator) Generate(res RunResult) *BacktestReport {
	var all []domain.SimulatedTrade
	perCoin := make(map[string]domain.CoinSummary, len(res.Tokens))

	for _, token := range res.Tokens {
		trades := res.Trades[token]
		perCoin[token] = metrics.SummarizeCoin(token, trades)
		all = append(all, trades...)
	}

	issues := make([]string, 0, len(res.Issues))
	issues = append(issues, res.Issues...)
	issues = append(issues, metrics.DataIssues(all)...)

	signalCounts := make(map[string]int, len(res.Tokens))
	for _, token := range res.Tokens {
		signalCounts[token] = res.SignalCounts[token]
	}

	portfolio := metrics.Portfolio(all)
	verdict := Verdict(portfolio.CumulativePnL)

	return &BacktestReport{
		RunID:         res.RunID,
		GeneratedAt:   g.now(),
		Config:        res.Config,
		WindowStartMs: res.WindowStartMs,
		WindowEndMs:   res.WindowEndMs,
		FXRate:        res.FXRate,
		Currency:      Currency,
		PerCoin:       perCoin,
		Portfolio:     portfolio,
		SignalCounts:  signalCounts,
		TopTrades:     metrics.TopTrades(all, metrics.DefaultTopN),
		WorstTrades:   metrics.WorstTrades(all, metrics.DefaultTopN),
		DataIssues:    issues,
		Summary:       summarize(perCoin, portfolio, verdict),
		Verdict:       verdict,
	}
}

// summarize writes the short human summary. Money is rounded with decimal
// so the text never shows float artifacts like -30.000000000004.
func summarize(perCoin map[string]domain.CoinSummary, p domain.PortfolioStats, verdict string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Total P&L: %s %s over %d trades (%d skipped)\n",
		money(p.CumulativePnL), Currency, p.TradeCount, p.SkippedCount))
	sb.WriteString(fmt.Sprintf("Hit rate: %s%%\n", decimal.NewFromFloat(p.HitRate).StringFixed(1)))

	best, worst, ok := bestAndWorstCoin(perCoin)
	if ok {
		sb.WriteString(fmt.Sprintf("Best coin: %s (%s %s)\n", best.Token, money(best.CumulativePnL), Currency))
		sb.WriteString(fmt.Sprintf("Worst coin: %s (%s %s)\n", worst.Token, money(worst.CumulativePnL), Currency))
	} else {
		sb.WriteString("Best coin: n/a\nWorst coin: n/a\n")
	}
	sb.WriteString(fmt.Sprintf("Verdict: %s", verdict))

	return sb.String()
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// bestAndWorstCoin ranks coins that executed at least one trade by cumulative P&L.
// Ties break on token name ASC.
func bestAndWorstCoin(perCoin map[string]domain.CoinSummary) (domain.CoinSummary, domain.CoinSummary, bool) {
	var traded []domain.CoinSummary
	for _, s := range perCoin {
		if s.TradeCount > 0 {
			traded = append(traded, s)
		}
	}
	if len(traded) == 0 {
		return domain.CoinSummary{}, domain.CoinSummary{}, false
	}

	sort.Slice(traded, func(i, j int) bool {
		if traded[i].CumulativePnL != traded[j].CumulativePnL {
			return traded[i].CumulativePnL > traded[j].CumulativePnL
		}
		return traded[i].Token < traded[j].Token
	})
	return traded[0], traded[len(traded)-1], true
}
