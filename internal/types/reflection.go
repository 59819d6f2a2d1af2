package types

import (
	"fmt"
	"strings"
	"time"
)

type SuggestedAction string

const (
	ActionAddBullet        SuggestedAction = "add_bullet"
	ActionIncrementHelpful SuggestedAction = "increment_helpful"
	ActionIncrementHarmful SuggestedAction = "increment_harmful"
	ActionReviewBullet     SuggestedAction = "review_bullet"
)

func ParseSuggestedAction(s string) (SuggestedAction, error) {
	switch a := SuggestedAction(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionAddBullet, ActionIncrementHelpful, ActionIncrementHarmful, ActionReviewBullet:
		return a, nil
	}
	return "", fmt.Errorf("unknown suggested_action %q", s)
}

func (a *SuggestedAction) UnmarshalText(text []byte) error {
	v, err := ParseSuggestedAction(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Insight is one structured observation produced by the reflector.
type Insight struct {
	Type            string          `json:"type,omitempty"`
	Observation     string          `json:"observation"`
	SuggestedAction SuggestedAction `json:"suggested_action"`
	Section         string          `json:"section,omitempty"`
	Content         string          `json:"content,omitempty"`
	BulletID        string          `json:"bullet_id,omitempty"`
	Priority        string          `json:"priority,omitempty"`
	Confidence      string          `json:"confidence,omitempty"`
}

type ReflectionSummary struct {
	TotalTrades int     `json:"total_trades"`
	WinRate     float64 `json:"win_rate"`
	AvgRR       float64 `json:"avg_rr"`
	TotalPips   float64 `json:"total_pips"`
	Error       string  `json:"error,omitempty"`
}

// QuarantinedInsight keeps a rejected insight next to the reason it was rejected.
type QuarantinedInsight struct {
	Raw    string `json:"raw"`
	Reason string `json:"reason"`
}

type Reflection struct {
	WeekEnding          string               `json:"week_ending"`
	Summary             ReflectionSummary    `json:"summary"`
	Insights            []Insight            `json:"insights"`
	Recommendations     []string             `json:"recommendations"`
	MarketRegimeNotes   string               `json:"market_regime_notes,omitempty"`
	QuarantinedInsights []QuarantinedInsight `json:"quarantined_insights,omitempty"`
	Error               string               `json:"error,omitempty"`
}

// WeeklySummary holds statistics computed from a week of trade logs.
type WeeklySummary struct {
	WeekStart   string  `json:"week_start"`
	WeekEnding  string  `json:"week_ending"`
	DaysLogged  int     `json:"days_logged"`
	TotalTrades int     `json:"total_trades"`
	NoTrades    int     `json:"no_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"`
	TotalPips   int     `json:"total_pips"`
	TotalUSD    float64 `json:"total_usd"`
	AvgPips     float64 `json:"avg_pips"`
	PipsStdDev  float64 `json:"pips_stddev"`
	BestPips    int     `json:"best_pips"`
	WorstPips   int     `json:"worst_pips"`
}

// DateLayout is the plan/week date format used throughout persisted records.
const DateLayout = "2006-01-02"

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
