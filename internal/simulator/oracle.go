package simulator

import (
	"hash/fnv"
	"math/rand/v2"

	"gemex-ace/internal/types"
)

// oracleStream fixes the PCG stream so the draw depends only on the plan date.
const oracleStream = 0x4143455f53494d31

// winProbability is the oracle's chance of a win for each confidence level.
// It is a stand-in for a market model, not an estimate of real hit rates.
func winProbability(c types.Confidence) float64 {
	switch c {
	case types.ConfidenceHigh:
		return 2.0 / 3.0
	case types.ConfidenceMedium:
		return 0.5
	default:
		return 0
	}
}

// oracleDraw returns a uniform value in [0,1) seeded by the plan date.
func oracleDraw(date string) float64 {
	h := fnv.New64a()
	h.Write([]byte(date))
	return rand.New(rand.NewPCG(h.Sum64(), oracleStream)).Float64()
}

// OracleWins reports the deterministic outcome for a date and confidence.
// A higher confidence never loses where a lower one wins.
func OracleWins(date string, c types.Confidence) bool {
	return oracleDraw(date) < winProbability(c)
}

// oracle fills the plan at the zone midpoint and exits at TP1 or SL.
// fallback marks a run that degraded from price replay; reason is recorded.
func (s *Simulator) oracle(plan types.TradingPlan, fallback bool, reason string) types.TradeLog {
	lo, hi := plan.ZoneBounds()
	entry := (lo + hi) / 2
	win := OracleWins(plan.Date, plan.Confidence)

	exit := *plan.StopLoss
	outcome := types.OutcomeLoss
	if win {
		exit = *plan.TakeProfit1
		outcome = types.OutcomeWin
	}
	pips, usd := s.pnl(planDirection(plan), entry, exit)

	log := types.TradeLog{
		PlanID: plan.Date,
		Execution: types.Execution{
			Status:     types.StatusFilled,
			EntryTime:  plan.Date + "T14:00:00Z",
			EntryPrice: entry,
			ExitTime:   plan.Date + "T16:30:00Z",
			ExitPrice:  exit,
			PnLPips:    pips,
			PnLUSD:     usd,
			Outcome:    outcome,
			Method:     types.MethodDeterministic,
		},
		Feedback: types.Feedback{
			EntryQuality:            types.EntryGood,
			ExitTiming:              types.ExitGood,
			UnexpectedEvents:        []string{},
			PlaybookBulletsFeedback: map[string]string{},
		},
	}
	if plan.Confidence == types.ConfidenceLow {
		log.Feedback.EntryQuality = types.EntryPoor
	}
	if !win {
		log.Feedback.ExitTiming = types.ExitStoppedOut
	}
	if fallback {
		log.Execution.Method = types.MethodHashFallback
		log.Feedback.EntryQuality = types.Simulated
		log.Feedback.ExitTiming = types.Simulated
		log.Feedback.UnexpectedEvents = append(log.Feedback.UnexpectedEvents, reason)
	}
	return log
}
