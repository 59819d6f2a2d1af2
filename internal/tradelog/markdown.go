package tradelog

import (
	"fmt"
	"strings"

	"gemex-ace/internal/types"
)

// RenderPlanMarkdown renders the human-readable mirror of a trading plan.
func RenderPlanMarkdown(plan types.TradingPlan) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Trading Plan %s\n\n", plan.Date)
	fmt.Fprintf(&b, "- **Bias:** %s\n", plan.Bias)
	fmt.Fprintf(&b, "- **Confidence:** %s\n", plan.Confidence)

	if len(plan.EntryZone) > 0 {
		lo, hi := plan.ZoneBounds()
		fmt.Fprintf(&b, "- **Entry zone:** %.5f - %.5f\n", lo, hi)
	}
	writeLevel(&b, "Stop loss", plan.StopLoss)
	writeLevel(&b, "Take profit 1", plan.TakeProfit1)
	writeLevel(&b, "Take profit 2", plan.TakeProfit2)
	if plan.PositionSizePct != nil {
		fmt.Fprintf(&b, "- **Position size:** %.2f%%\n", *plan.PositionSizePct)
	}
	if plan.RiskReward != "" {
		fmt.Fprintf(&b, "- **Risk/reward:** %s\n", plan.RiskReward)
	}

	b.WriteString("\n## Rationale\n\n")
	if plan.Rationale != "" {
		b.WriteString(plan.Rationale)
	} else {
		b.WriteString("_none given_")
	}
	b.WriteString("\n")

	if len(plan.PlaybookBulletsUsed) > 0 {
		b.WriteString("\n## Playbook bullets used\n\n")
		for _, id := range plan.PlaybookBulletsUsed {
			fmt.Fprintf(&b, "- `%s`\n", id)
		}
	}
	if plan.Error != "" {
		fmt.Fprintf(&b, "\n> Plan degraded: %s\n", plan.Error)
	}
	return b.String()
}

func writeLevel(b *strings.Builder, label string, v *float64) {
	if v == nil {
		return
	}
	fmt.Fprintf(b, "- **%s:** %.5f\n", label, *v)
}
