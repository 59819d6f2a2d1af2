package types

import "time"

// Candle is one OHLC bar of a price series.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

type Interval string

const (
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval1d  Interval = "1d"
)

func (i Interval) Duration() time.Duration {
	switch i {
	case Interval15m:
		return 15 * time.Minute
	case Interval1h:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

type TimeframeAnalysis struct {
	Trend      string  `json:"trend"`
	EMA50      float64 `json:"ema_50"`
	EMA200     float64 `json:"ema_200"`
	RSI14      float64 `json:"rsi_14"`
	ATR14      float64 `json:"atr_14"`
	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
}

type CalendarEvent struct {
	EventName string `json:"event_name"`
	TimeUTC   string `json:"time_utc"`
	Currency  string `json:"currency"`
	Impact    string `json:"impact"`
	Forecast  string `json:"forecast"`
	Previous  string `json:"previous"`
}

// MarketSnapshot is the market context handed to the plan generator.
type MarketSnapshot struct {
	Timestamp    time.Time                    `json:"timestamp"`
	Symbol       string                       `json:"symbol"`
	CurrentPrice float64                      `json:"current_price"`
	Timeframes   map[string]TimeframeAnalysis `json:"timeframes"`
	Intermarket  map[string]string            `json:"intermarket"`
	NewsEvents   []CalendarEvent              `json:"news_events"`
	Error        string                       `json:"error,omitempty"`
}

// DailyResult is what one daily cycle produced.
type DailyResult struct {
	RunID    string      `json:"run_id"`
	Date     string      `json:"date"`
	Plan     TradingPlan `json:"plan"`
	TradeLog TradeLog    `json:"trade_log"`
	Version  string      `json:"playbook_version"`
}

// WeeklyResult is what one weekly cycle produced. Skipped is set when no
// trade logs existed for the week.
type WeeklyResult struct {
	RunID      string         `json:"run_id"`
	WeekEnding string         `json:"week_ending"`
	Skipped    bool           `json:"skipped"`
	Summary    WeeklySummary  `json:"summary"`
	Reflection *Reflection    `json:"reflection,omitempty"`
	Audit      *CurationAudit `json:"curation,omitempty"`
}
