package notify

import (
	"fmt"
	"strings"

	"gemex-ace/internal/types"
)

// Split breaks text on line boundaries into chunks of at most max characters.
// With more than one chunk each gets a "Part i of n" header; the header is
// counted against max. A single line longer than max is cut hard.
func Split(text string, max int) []string {
	if len([]rune(text)) <= max {
		return []string{text}
	}
	const headerRoom = 20
	limit := max - headerRoom

	var chunks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
			curLen = 0
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		r := []rune(line)
		for len(r) > limit {
			flush()
			chunks = append(chunks, string(r[:limit]))
			r = r[limit:]
		}
		if curLen+len(r) > limit {
			flush()
		}
		cur.WriteString(string(r))
		curLen += len(r)
	}
	flush()

	for i := range chunks {
		chunks[i] = fmt.Sprintf("Part %d of %d\n\n%s", i+1, len(chunks), chunks[i])
	}
	return chunks
}

func biasIcon(b types.Bias) string {
	switch b {
	case types.BiasBullish:
		return "📈"
	case types.BiasBearish:
		return "📉"
	}
	return "➡️"
}

func level(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.5f", *v)
}

// FormatPlan renders the daily plan message.
func FormatPlan(symbol string, plan types.TradingPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎯 *%s plan for %s*\n\n", symbol, plan.Date)
	fmt.Fprintf(&b, "%s Bias: *%s* (confidence %s)\n", biasIcon(plan.Bias), plan.Bias, plan.Confidence)
	if plan.IsNoTrade() {
		b.WriteString("⏸️ No trade today\n")
	} else {
		lo, hi := plan.ZoneBounds()
		fmt.Fprintf(&b, "Entry zone: %.5f - %.5f\n", lo, hi)
		fmt.Fprintf(&b, "Stop loss: %s\n", level(plan.StopLoss))
		fmt.Fprintf(&b, "TP1: %s  TP2: %s\n", level(plan.TakeProfit1), level(plan.TakeProfit2))
		if plan.RiskReward != "" {
			fmt.Fprintf(&b, "R:R %s\n", plan.RiskReward)
		}
	}
	if plan.Rationale != "" {
		fmt.Fprintf(&b, "\n%s\n", plan.Rationale)
	}
	if len(plan.PlaybookBulletsUsed) > 0 {
		fmt.Fprintf(&b, "\nBullets: %s\n", strings.Join(plan.PlaybookBulletsUsed, ", "))
	}
	if plan.Error != "" {
		fmt.Fprintf(&b, "\n⚠️ Degraded: %s\n", plan.Error)
	}
	return b.String()
}

// FormatWeekly renders the weekly review message.
func FormatWeekly(sum types.WeeklySummary, refl *types.Reflection, audit *types.CurationAudit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Weekly review %s to %s*\n\n", sum.WeekStart, sum.WeekEnding)
	fmt.Fprintf(&b, "Trades: %d (wins %d, losses %d, no-trade days %d)\n", sum.TotalTrades, sum.Wins, sum.Losses, sum.NoTrades)
	fmt.Fprintf(&b, "Win rate: %.0f%%\n", sum.WinRate*100)
	fmt.Fprintf(&b, "P&L: %+d pips (%+.2f USD)\n", sum.TotalPips, sum.TotalUSD)

	if refl != nil {
		if refl.MarketRegimeNotes != "" {
			fmt.Fprintf(&b, "\nRegime: %s\n", refl.MarketRegimeNotes)
		}
		if len(refl.Recommendations) > 0 {
			b.WriteString("\nRecommendations:\n")
			for _, r := range refl.Recommendations {
				fmt.Fprintf(&b, "• %s\n", r)
			}
		}
		if refl.Error != "" {
			fmt.Fprintf(&b, "\n⚠️ Reflection degraded: %s\n", refl.Error)
		}
	}
	if audit != nil {
		fmt.Fprintf(&b, "\nPlaybook %s → %s: +%d added, %d helpful, %d harmful, %d pruned, %d to review\n",
			audit.FromVersion, audit.ToVersion, len(audit.Added), len(audit.Helpful), len(audit.Harmful), len(audit.Pruned), len(audit.Reviews))
	}
	return b.String()
}
