package types

import (
	"fmt"
	"strings"
)

type Bias string

const (
	BiasBullish Bias = "bullish"
	BiasBearish Bias = "bearish"
	BiasNeutral Bias = "neutral"
)

// ParseBias maps the canonical and legacy bias vocabulary onto Bias.
// An empty value is treated as neutral.
func ParseBias(s string) (Bias, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "":
		return BiasNeutral, nil
	case strings.Contains(v, "neutral"):
		return BiasNeutral, nil
	case v == "bullish", v == "bullish_pattern", v == "long", v == "buy":
		return BiasBullish, nil
	case v == "bearish", v == "bearish_pattern", v == "short", v == "sell":
		return BiasBearish, nil
	}
	return "", fmt.Errorf("unknown bias %q", s)
}

func (b *Bias) UnmarshalText(text []byte) error {
	v, err := ParseBias(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence accepts "high", "high_probability" and friends. Missing is medium.
func ParseConfidence(s string) (Confidence, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimSuffix(v, "_probability")
	switch v {
	case "high":
		return ConfidenceHigh, nil
	case "", "medium", "moderate":
		return ConfidenceMedium, nil
	case "low":
		return ConfidenceLow, nil
	}
	return "", fmt.Errorf("unknown confidence %q", s)
}

func (c *Confidence) UnmarshalText(text []byte) error {
	v, err := ParseConfidence(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// TradingPlan is the generator's daily output.
type TradingPlan struct {
	Date                string     `json:"date"`
	Bias                Bias       `json:"bias"`
	EntryZone           []float64  `json:"entry_zone,omitempty"`
	StopLoss            *float64   `json:"stop_loss,omitempty"`
	TakeProfit1         *float64   `json:"take_profit_1,omitempty"`
	TakeProfit2         *float64   `json:"take_profit_2,omitempty"`
	PositionSizePct     *float64   `json:"position_size_pct,omitempty"`
	RiskReward          string     `json:"risk_reward,omitempty"`
	Rationale           string     `json:"rationale"`
	Confidence          Confidence `json:"confidence"`
	PlaybookBulletsUsed []string   `json:"playbook_bullets_used"`
	Error               string     `json:"error,omitempty"`
}

// IsNoTrade reports whether the plan asks to stay flat.
func (p TradingPlan) IsNoTrade() bool {
	return p.Bias == BiasNeutral || len(p.EntryZone) == 0
}

// ZoneBounds returns the lower and upper edge of the entry zone.
func (p TradingPlan) ZoneBounds() (lo, hi float64) {
	if len(p.EntryZone) == 0 {
		return 0, 0
	}
	lo, hi = p.EntryZone[0], p.EntryZone[0]
	for _, v := range p.EntryZone[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// NeutralPlan is the safe plan returned whenever generation degrades.
func NeutralPlan(date, rationale, errMsg string) TradingPlan {
	return TradingPlan{
		Date:                date,
		Bias:                BiasNeutral,
		Rationale:           rationale,
		Confidence:          ConfidenceLow,
		PlaybookBulletsUsed: []string{},
		Error:               errMsg,
	}
}

// Float returns a pointer to v, for optional plan levels.
func Float(v float64) *float64 {
	return &v
}
