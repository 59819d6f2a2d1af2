package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"gemex-ace/internal/types"
)

const generatorSystemPrompt = `You are a market analysis assistant producing a paper-trading plan for %s.
This is a simulation for studying how a curated playbook relates to market structure. It is not financial advice.

Inputs:
1. Playbook: curated bullets of strategies, templates and pitfalls, each with an id and helpful/harmful counters.
2. Market snapshot: current price, 1h and 1d technical analysis, intermarket trends and high-impact calendar events.

Respond with ONE JSON object and nothing else:
{
  "date": "YYYY-MM-DD",
  "bias": "bullish|bearish|neutral",
  "entry_zone": [low, high],
  "stop_loss": price,
  "take_profit_1": price,
  "take_profit_2": price,
  "position_size_pct": 0.75,
  "risk_reward": "1:2.5",
  "rationale": "short explanation citing the market structure",
  "playbook_bullets_used": ["bullet ids that informed the plan"],
  "confidence": "high|medium|low"
}

Rules:
- Cite the ids of the playbook bullets you relied on. Never invent ids.
- Keep position_size_pct at or below 0.75 and risk/reward at or above 1:1.5.
- Respect documented pitfalls, especially around high-impact events.
- If no setup matches the playbook, return "bias": "neutral" and omit the price levels.`

const reflectorSystemPrompt = `You are a trading performance analyst. Review one week of simulated trade logs and propose playbook updates.

Respond with ONE JSON object and nothing else:
{
  "week_ending": "YYYY-MM-DD",
  "summary": {"total_trades": 0, "win_rate": 0.0, "avg_rr": 0.0, "total_pips": 0},
  "insights": [
    {
      "type": "success_pattern|failure_pattern|execution_issue|outdated_rule|playbook_validation",
      "observation": "what was observed",
      "suggested_action": "add_bullet|increment_helpful|increment_harmful|review_bullet",
      "section": "strategies_and_hard_rules|useful_code_and_templates|troubleshooting_and_pitfalls",
      "content": "new bullet text when adding",
      "bullet_id": "existing bullet id when updating",
      "priority": "high|medium|low",
      "confidence": "evidence strength"
    }
  ],
  "recommendations": ["key recommendations for next week"],
  "market_regime_notes": "market conditions this week"
}

Guidelines:
- A success pattern needs at least two wins with the same setup. A failure pattern needs at least two losses with the same mistake.
- Use increment_helpful or increment_harmful only with a bullet_id that exists in the playbook.
- Use add_bullet for new lessons and put them in the section they belong to.`

// GeneratorPrompt builds the daily plan request.
func GeneratorPrompt(symbol string, pb *types.Playbook, snapshot types.MarketSnapshot) (string, string, error) {
	pbJSON, err := json.MarshalIndent(pb, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal playbook: %w", err)
	}
	snapJSON, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal snapshot: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze %s market structure for the %s session.\n\n", symbol, snapshot.Timestamp.UTC().Format(types.DateLayout))
	b.WriteString("PLAYBOOK:\n")
	b.Write(pbJSON)
	b.WriteString("\n\nMARKET SNAPSHOT:\n")
	b.Write(snapJSON)
	b.WriteString("\n\nReturn the plan as raw JSON only.")
	return fmt.Sprintf(generatorSystemPrompt, symbol), b.String(), nil
}

// ReflectorPrompt builds the weekly review request.
func ReflectorPrompt(logs []types.TradeLog, pb *types.Playbook, summary types.WeeklySummary) (string, string, error) {
	logsJSON, err := json.MarshalIndent(logs, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal trade logs: %w", err)
	}
	pbJSON, err := json.MarshalIndent(pb, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal playbook: %w", err)
	}
	sumJSON, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal summary: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the trading week ending %s.\n\n", summary.WeekEnding)
	b.WriteString("COMPUTED STATISTICS:\n")
	b.Write(sumJSON)
	b.WriteString("\n\nWEEKLY TRADE LOGS:\n")
	b.Write(logsJSON)
	b.WriteString("\n\nCURRENT PLAYBOOK:\n")
	b.Write(pbJSON)
	b.WriteString("\n\nReturn the reflection as raw JSON only.")
	return reflectorSystemPrompt, b.String(), nil
}
