package simulator

import (
	"context"
	"fmt"
	"math"
	"time"

	"gemex-ace/internal/interfaces"
	"gemex-ace/internal/logger"
	"gemex-ace/internal/store"
	"gemex-ace/internal/types"
)

const (
	ReasonNoEntry        = "Neutral bias or no entry criteria met"
	ReasonMissingLevels  = "Missing required price levels (entry/SL/TP)"
	ReasonNeverTriggered = "Entry zone never triggered by price action"
	ReasonNoPriceData    = "No price data available for this date"
	ReasonSessionClose   = "Neither stop nor target hit, closed at session end"
)

type Config struct {
	Symbol        string
	SessionStart  time.Duration // offset from midnight UTC
	SessionLength time.Duration
	Interval      types.Interval
	PipMultiplier float64
	USDPerPip     float64
	// ReplayMethod tags trade logs replayed from bars.
	ReplayMethod string
}

func DefaultConfig() Config {
	return Config{
		Symbol:        "EURUSD",
		SessionStart:  13 * time.Hour,
		SessionLength: 8 * time.Hour,
		Interval:      types.Interval15m,
		PipMultiplier: 10000,
		USDPerPip:     10,
		ReplayMethod:  types.MethodRealPriceData,
	}
}

// ConfigFrom maps the application config onto simulator settings.
func ConfigFrom(cfg *store.Config) Config {
	start := cfg.SessionStart(time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC))
	method := types.MethodRealPriceData
	if cfg.Market.Source == "STATIC" {
		method = types.MethodSyntheticPriceData
	}
	return Config{
		Symbol:        cfg.Symbol,
		SessionStart:  time.Duration(start.Hour())*time.Hour + time.Duration(start.Minute())*time.Minute,
		SessionLength: time.Duration(cfg.Simulation.SessionHours) * time.Hour,
		Interval:      types.Interval(cfg.Simulation.Interval),
		PipMultiplier: cfg.Simulation.PipMultiplier,
		USDPerPip:     cfg.Simulation.USDPerPip,
		ReplayMethod:  method,
	}
}

// Simulator turns a trading plan into a trade log. Without a price source it
// runs the deterministic oracle only.
type Simulator struct {
	cfg    Config
	prices interfaces.PriceSource
}

var _ interfaces.Simulator = (*Simulator)(nil)

func New(cfg Config, prices interfaces.PriceSource) *Simulator {
	if cfg.ReplayMethod == "" {
		cfg.ReplayMethod = types.MethodRealPriceData
	}
	return &Simulator{cfg: cfg, prices: prices}
}

// NewFromConfig builds the simulator for the configured mode. DETERMINISTIC
// ignores prices and always runs the oracle.
func NewFromConfig(cfg *store.Config, prices interfaces.PriceSource) *Simulator {
	if cfg.Simulation.Mode == "DETERMINISTIC" {
		prices = nil
	}
	return New(ConfigFrom(cfg), prices)
}

func (s *Simulator) Simulate(ctx context.Context, plan types.TradingPlan) types.TradeLog {
	log := s.simulate(ctx, plan)
	logger.Trade(ctx, log.PlanID, string(log.Execution.Status), string(log.Execution.Outcome),
		log.Execution.PnLPips,
		"method", log.Execution.Method,
		"reason", log.Execution.Reason,
	)
	return log
}

func (s *Simulator) simulate(ctx context.Context, plan types.TradingPlan) types.TradeLog {
	if plan.IsNoTrade() {
		return types.NoTradeLog(plan.Date, ReasonNoEntry)
	}
	if plan.StopLoss == nil || plan.TakeProfit1 == nil {
		return types.NoTradeLog(plan.Date, ReasonMissingLevels)
	}
	day, err := time.Parse(types.DateLayout, plan.Date)
	if err != nil {
		return types.NoTradeLog(plan.Date, fmt.Sprintf("Invalid plan date %q", plan.Date))
	}

	if s.prices == nil {
		return s.oracle(plan, false, "")
	}

	from := day.Add(s.cfg.SessionStart)
	to := from.Add(s.cfg.SessionLength)
	bars, err := s.prices.Bars(ctx, s.cfg.Symbol, from, to, s.cfg.Interval)
	if err != nil {
		logger.Warn(ctx, "Price data unavailable, using deterministic fallback", "date", plan.Date, "error", err)
		return s.oracle(plan, true, fmt.Sprintf("Data error: %v", err))
	}
	if len(bars) == 0 {
		logger.Warn(ctx, "Empty price series, using deterministic fallback", "date", plan.Date)
		return s.oracle(plan, true, ReasonNoPriceData)
	}
	return s.replay(plan, bars)
}

type direction int

const (
	long direction = iota
	short
)

func planDirection(plan types.TradingPlan) direction {
	lo, hi := plan.ZoneBounds()
	if *plan.TakeProfit1 > (lo+hi)/2 {
		return long
	}
	return short
}

func (s *Simulator) pnl(dir direction, entry, exit float64) (int, float64) {
	move := exit - entry
	if dir == short {
		move = entry - exit
	}
	pips := int(math.Round(move * s.cfg.PipMultiplier))
	return pips, float64(pips) * s.cfg.USDPerPip
}

func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}

// Backtest simulates the template plan on every weekday in [from, to].
func (s *Simulator) Backtest(ctx context.Context, template types.TradingPlan, from, to time.Time) []types.TradeLog {
	var logs []types.TradeLog
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		plan := template
		plan.Date = types.FormatDate(d)
		logs = append(logs, s.Simulate(ctx, plan))
	}
	return logs
}
