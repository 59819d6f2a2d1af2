package types

import "encoding/json"

type ExecutionStatus string

const (
	StatusNoTrade ExecutionStatus = "no_trade"
	StatusFilled  ExecutionStatus = "filled"
)

type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
)

const (
	MethodRealPriceData      = "real_price_data"
	MethodSyntheticPriceData = "synthetic_price_data"
	MethodHashFallback       = "hash_based_fallback"
	MethodDeterministic      = "deterministic_oracle"
)

// Feedback vocabulary.
const (
	EntryNotTriggered = "not_triggered"
	EntryGood         = "good"
	EntryPoor         = "poor"
	Simulated         = "simulated"

	ExitNotApplicable = "n/a"
	ExitGood          = "good"
	ExitStoppedOut    = "stopped_out"
	ExitTakeProfitHit = "take_profit_hit"
)

// Execution is either a no-trade record (Status, Reason) or a filled trade.
type Execution struct {
	Status     ExecutionStatus `json:"status"`
	Reason     string          `json:"reason,omitempty"`
	EntryTime  string          `json:"entry_time,omitempty"`
	EntryPrice float64         `json:"entry_price,omitempty"`
	ExitTime   string          `json:"exit_time,omitempty"`
	ExitPrice  float64         `json:"exit_price,omitempty"`
	PnLPips    int             `json:"pnl_pips,omitempty"`
	PnLUSD     float64         `json:"pnl_usd,omitempty"`
	Outcome    Outcome         `json:"outcome,omitempty"`
	Method     string          `json:"method,omitempty"`
}

func (e Execution) Filled() bool {
	return e.Status == StatusFilled
}

// MarshalJSON always writes the P&L fields of a filled trade, even at zero.
func (e Execution) MarshalJSON() ([]byte, error) {
	type plain Execution
	if !e.Filled() {
		return json.Marshal(plain(e))
	}
	return json.Marshal(struct {
		plain
		PnLPips int     `json:"pnl_pips"`
		PnLUSD  float64 `json:"pnl_usd"`
	}{plain(e), e.PnLPips, e.PnLUSD})
}

type Feedback struct {
	EntryQuality            string            `json:"entry_quality"`
	ExitTiming              string            `json:"exit_timing"`
	UnexpectedEvents        []string          `json:"unexpected_events"`
	PlaybookBulletsFeedback map[string]string `json:"playbook_bullets_feedback"`
}

// TradeLog is the simulator's record of one trading day.
type TradeLog struct {
	PlanID    string    `json:"plan_id"`
	Execution Execution `json:"execution"`
	Feedback  Feedback  `json:"feedback"`
}

// NoTradeLog builds the log for a plan that never entered the market.
func NoTradeLog(planID, reason string) TradeLog {
	return TradeLog{
		PlanID:    planID,
		Execution: Execution{Status: StatusNoTrade, Reason: reason},
		Feedback: Feedback{
			EntryQuality:            EntryNotTriggered,
			ExitTiming:              ExitNotApplicable,
			UnexpectedEvents:        []string{},
			PlaybookBulletsFeedback: map[string]string{},
		},
	}
}
