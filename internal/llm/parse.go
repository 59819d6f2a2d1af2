package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gemex-ace/internal/types"
)

var codeFence = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)\\s*```")

// ExtractJSON pulls the JSON object out of a model response: fenced blocks are
// unwrapped, then the text between the first '{' and the last '}' is returned.
func ExtractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	if m := codeFence.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", errors.New("no JSON object found in response")
	}
	return text[start : end+1], nil
}

// DecodePlan parses and validates a generator response.
func DecodePlan(text string) (types.TradingPlan, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return types.TradingPlan{}, err
	}
	var plan types.TradingPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return types.TradingPlan{}, fmt.Errorf("invalid trading plan: %w", err)
	}
	if plan.Bias == "" {
		plan.Bias = types.BiasNeutral
	}
	if plan.Confidence == "" {
		plan.Confidence = types.ConfidenceMedium
	}
	if plan.PlaybookBulletsUsed == nil {
		plan.PlaybookBulletsUsed = []string{}
	}
	plan.Error = ""
	if err := validatePlan(plan); err != nil {
		return types.TradingPlan{}, err
	}
	return plan, nil
}

func validatePlan(plan types.TradingPlan) error {
	if plan.IsNoTrade() {
		return nil
	}
	lo, hi := plan.ZoneBounds()
	if lo <= 0 || hi <= 0 {
		return fmt.Errorf("entry_zone must be positive prices, got %v", plan.EntryZone)
	}
	for name, v := range map[string]*float64{
		"stop_loss":     plan.StopLoss,
		"take_profit_1": plan.TakeProfit1,
		"take_profit_2": plan.TakeProfit2,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be a positive price, got %v", name, *v)
		}
	}
	return nil
}

// reflectionWire defers insight decoding so one bad insight can be quarantined
// without discarding the rest of the reflection.
type reflectionWire struct {
	WeekEnding        string            `json:"week_ending"`
	Summary           json.RawMessage   `json:"summary"`
	Insights          []json.RawMessage `json:"insights"`
	Recommendations   []string          `json:"recommendations"`
	MarketRegimeNotes string            `json:"market_regime_notes"`
}

// decodeSummary never fails: a malformed summary is replaced by an empty one
// noting the decode error.
func decodeSummary(raw json.RawMessage) types.ReflectionSummary {
	var sum types.ReflectionSummary
	if len(raw) == 0 || string(raw) == "null" {
		return sum
	}
	if err := json.Unmarshal(raw, &sum); err != nil {
		return types.ReflectionSummary{Error: "unreadable summary: " + err.Error()}
	}
	return sum
}

// DecodeReflection parses a reflector response, quarantining invalid insights.
func DecodeReflection(text string) (types.Reflection, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return types.Reflection{}, err
	}
	var wire reflectionWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return types.Reflection{}, fmt.Errorf("invalid reflection: %w", err)
	}

	refl := types.Reflection{
		WeekEnding:        wire.WeekEnding,
		Summary:           decodeSummary(wire.Summary),
		Insights:          []types.Insight{},
		Recommendations:   wire.Recommendations,
		MarketRegimeNotes: wire.MarketRegimeNotes,
	}
	if refl.Recommendations == nil {
		refl.Recommendations = []string{}
	}
	for _, msg := range wire.Insights {
		var in types.Insight
		if err := json.Unmarshal(msg, &in); err != nil {
			refl.QuarantinedInsights = append(refl.QuarantinedInsights, types.QuarantinedInsight{
				Raw:    string(msg),
				Reason: err.Error(),
			})
			continue
		}
		if in.SuggestedAction == "" {
			refl.QuarantinedInsights = append(refl.QuarantinedInsights, types.QuarantinedInsight{
				Raw:    string(msg),
				Reason: "missing suggested_action",
			})
			continue
		}
		refl.Insights = append(refl.Insights, in)
	}
	return refl, nil
}
