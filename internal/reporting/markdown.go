package reporting

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"whaleflow-lab/internal/domain"
)

// RenderJSON renders report as indented JSON.
func RenderJSON(r *BacktestReport) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return data, nil
}

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *BacktestReport) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Whale Flow Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Run: %s\n\n", r.RunID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Window: %s to %s (%d hours)\n\n",
		formatMs(r.WindowStartMs), formatMs(r.WindowEndMs), r.Config.WindowHours))
	sb.WriteString(fmt.Sprintf("Notional: %.2f %s | Taker fee: %.1f bps | Slippage: %.1f bps | FX: %.4f\n\n",
		r.Config.NotionalPerSignal, r.Currency, r.Config.TakerFeeBps, r.Config.SlippageBps, r.FXRate))

	// Verdict
	sb.WriteString("## Verdict\n\n")
	sb.WriteString(fmt.Sprintf("**%s**\n\n", r.Verdict))
	sb.WriteString("```\n")
	sb.WriteString(r.Summary)
	sb.WriteString("\n```\n\n")

	// Per-coin
	sb.WriteString("## Per-Coin Summary\n\n")
	if len(r.PerCoin) > 0 {
		sb.WriteString("| Token | Signals | Trades | Skipped | HitRate% | AvgRet% | MedianRet% | CumPnL | CumRet% | MaxDD% |\n")
		sb.WriteString("|-------|---------|--------|---------|----------|---------|------------|--------|---------|--------|\n")
		for _, token := range sortedTokens(r.PerCoin) {
			s := r.PerCoin[token]
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %.2f | %.4f | %.4f | %.2f | %.4f | %.4f |\n",
				token, r.SignalCounts[token], s.TradeCount, s.SkippedCount, s.HitRate,
				s.AvgReturnPct, s.MedianReturnPct, s.CumulativePnL, s.CumulativeReturnPct, s.MaxDrawdownPct))
		}
	} else {
		sb.WriteString("No coins evaluated.\n")
	}
	sb.WriteString("\n")

	// Portfolio
	p := r.Portfolio
	sb.WriteString("## Portfolio\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Trades | %d |\n", p.TradeCount))
	sb.WriteString(fmt.Sprintf("| Skipped | %d |\n", p.SkippedCount))
	sb.WriteString(fmt.Sprintf("| Hit Rate %% | %.2f |\n", p.HitRate))
	sb.WriteString(fmt.Sprintf("| Avg Return %% | %.4f |\n", p.AvgReturnPct))
	sb.WriteString(fmt.Sprintf("| Median Return %% | %.4f |\n", p.MedianReturnPct))
	sb.WriteString(fmt.Sprintf("| Cumulative P&L | %.2f |\n", p.CumulativePnL))
	sb.WriteString(fmt.Sprintf("| Cumulative Return %% | %.4f |\n", p.CumulativeReturnPct))
	sb.WriteString(fmt.Sprintf("| Max Drawdown %% | %.4f |\n", p.MaxDrawdownPct))
	sb.WriteString(fmt.Sprintf("| Volatility %% | %.4f |\n", p.VolatilityPct))
	sb.WriteString(fmt.Sprintf("| Sharpe | %.4f |\n", p.Sharpe))
	sb.WriteString(fmt.Sprintf("| Sortino | %.4f |\n", p.Sortino))
	sb.WriteString("\n")

	// Direction breakdown
	sb.WriteString("## Bullish vs Bearish\n\n")
	sb.WriteString("| Direction | Trades | AvgRet% | CumPnL |\n")
	sb.WriteString("|-----------|--------|---------|--------|\n")
	for _, dir := range []domain.Direction{domain.DirectionBullish, domain.DirectionBearish} {
		d := p.ByDirection[dir]
		sb.WriteString(fmt.Sprintf("| %s | %d | %.4f | %.2f |\n", dir, d.TradeCount, d.AvgReturnPct, d.CumulativePnL))
	}
	sb.WriteString("\n")

	// Hour of day
	sb.WriteString("## Hour of Day (UTC)\n\n")
	if len(p.ByHourOfDay) > 0 {
		sb.WriteString("| Hour | Trades | AvgRet% |\n")
		sb.WriteString("|------|--------|---------|\n")
		for _, h := range p.ByHourOfDay {
			sb.WriteString(fmt.Sprintf("| %02d | %d | %.4f |\n", h.Hour, h.TradeCount, h.AvgReturnPct))
		}
	} else {
		sb.WriteString("No executed trades.\n")
	}
	sb.WriteString("\n")

	// Top / worst
	writeTradeTable(&sb, "Top Trades", r.TopTrades)
	writeTradeTable(&sb, "Worst Trades", r.WorstTrades)

	// Data issues
	sb.WriteString("## Data Issues\n\n")
	if len(r.DataIssues) > 0 {
		for _, issue := range r.DataIssues {
			sb.WriteString(fmt.Sprintf("- %s\n", issue))
		}
	} else {
		sb.WriteString("None.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func writeTradeTable(sb *strings.Builder, title string, trades []domain.SimulatedTrade) {
	sb.WriteString(fmt.Sprintf("## %s\n\n", title))
	if len(trades) == 0 {
		sb.WriteString("No executed trades.\n\n")
		return
	}
	sb.WriteString("| Token | Entry | Direction | Entry Px | Exit Px | NetPnL | Ret% |\n")
	sb.WriteString("|-------|-------|-----------|----------|---------|--------|------|\n")
	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %.2f | %.4f |\n",
			t.Token, formatMs(t.EntryTimeMs), t.Direction,
			formatPrice(t.EntryPrice), formatPrice(t.ExitPrice), t.NetPnL, t.ReturnPct))
	}
	sb.WriteString("\n")
}

func formatMs(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func formatPrice(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.6g", *p)
}

func sortedTokens(m map[string]domain.CoinSummary) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
