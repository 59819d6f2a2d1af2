package simulator

import (
	"time"

	"gemex-ace/internal/types"
)

// findEntry returns the index of the first bar that fills the plan and the fill price.
// A bar with its low or high inside the zone fills at the midpoint; a long whose
// low undercuts the zone fills at the lower bound, a short whose high overshoots
// fills at the upper bound.
func findEntry(bars []types.Candle, lo, hi float64, dir direction) (int, float64) {
	mid := (lo + hi) / 2
	for i, b := range bars {
		lowIn := b.Low >= lo && b.Low <= hi
		highIn := b.High >= lo && b.High <= hi
		switch {
		case lowIn || highIn:
			return i, mid
		case dir == long && b.Low <= lo:
			return i, lo
		case dir == short && b.High >= hi:
			return i, hi
		}
	}
	return -1, 0
}

// replay walks the session bars: stop loss is checked before take profit
// within a bar, and an open trade is closed at the last bar's close.
func (s *Simulator) replay(plan types.TradingPlan, bars []types.Candle) types.TradeLog {
	lo, hi := plan.ZoneBounds()
	dir := planDirection(plan)
	sl, tp := *plan.StopLoss, *plan.TakeProfit1

	entryIdx, entry := findEntry(bars, lo, hi, dir)
	if entryIdx < 0 {
		return types.NoTradeLog(plan.Date, ReasonNeverTriggered)
	}

	exitIdx := len(bars) - 1
	exit := bars[exitIdx].Close
	exitTiming := ""
	var events []string

scan:
	for i := entryIdx + 1; i < len(bars); i++ {
		b := bars[i]
		switch {
		case dir == long && b.Low <= sl, dir == short && b.High >= sl:
			exitIdx, exit, exitTiming = i, sl, types.ExitStoppedOut
			break scan
		case dir == long && b.High >= tp, dir == short && b.Low <= tp:
			exitIdx, exit, exitTiming = i, tp, types.ExitTakeProfitHit
			break scan
		}
	}

	entry, exit = round5(entry), round5(exit)
	pips, usd := s.pnl(dir, entry, exit)
	outcome := types.OutcomeLoss
	if (dir == long && exit > entry) || (dir == short && exit < entry) {
		outcome = types.OutcomeWin
	}
	if exitTiming == "" {
		events = append(events, ReasonSessionClose)
		exitTiming = types.ExitStoppedOut
		if outcome == types.OutcomeWin {
			exitTiming = types.ExitTakeProfitHit
		}
	}
	if events == nil {
		events = []string{}
	}

	return types.TradeLog{
		PlanID: plan.Date,
		Execution: types.Execution{
			Status:     types.StatusFilled,
			EntryTime:  bars[entryIdx].Time.UTC().Format(time.RFC3339),
			EntryPrice: entry,
			ExitTime:   bars[exitIdx].Time.UTC().Format(time.RFC3339),
			ExitPrice:  exit,
			PnLPips:    pips,
			PnLUSD:     usd,
			Outcome:    outcome,
			Method:     s.cfg.ReplayMethod,
		},
		Feedback: types.Feedback{
			EntryQuality:            types.EntryGood,
			ExitTiming:              exitTiming,
			UnexpectedEvents:        events,
			PlaybookBulletsFeedback: map[string]string{},
		},
	}
}
