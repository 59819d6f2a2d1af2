package weekly

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"gemex-ace/internal/logger"
	"gemex-ace/internal/types"
)

// DayLoader fetches one day's trade log; (nil, nil) means no log for that day.
type DayLoader interface {
	LoadTradeLog(day time.Time) (*types.TradeLog, error)
}

type Aggregator struct {
	days DayLoader
}

func NewAggregator(days DayLoader) *Aggregator {
	return &Aggregator{days: days}
}

// MondayOf returns midnight of the Monday in t's week.
func MondayOf(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
}

// LoadWeek returns the Monday-Friday trade logs of weekEnding's week in date
// order, skipping days without a log. An empty result means nothing to reflect on.
func (a *Aggregator) LoadWeek(ctx context.Context, weekEnding time.Time) ([]types.TradeLog, error) {
	monday := MondayOf(weekEnding)
	logs := []types.TradeLog{}
	for i := 0; i < 5; i++ {
		day := monday.AddDate(0, 0, i)
		log, err := a.days.LoadTradeLog(day)
		if err != nil {
			return nil, fmt.Errorf("load trade log for %s: %w", types.FormatDate(day), err)
		}
		if log == nil {
			logger.Debug(ctx, "No trade log for day", "date", types.FormatDate(day))
			continue
		}
		logs = append(logs, *log)
	}
	logger.Info(ctx, "Loaded weekly trade logs",
		"week_start", types.FormatDate(monday),
		"week_ending", types.FormatDate(weekEnding),
		"days_logged", len(logs),
	)
	return logs, nil
}

// Summarize computes win rate and pip statistics over the filled trades.
func Summarize(weekEnding time.Time, logs []types.TradeLog) types.WeeklySummary {
	sum := types.WeeklySummary{
		WeekStart:  types.FormatDate(MondayOf(weekEnding)),
		WeekEnding: types.FormatDate(weekEnding),
		DaysLogged: len(logs),
	}

	var pips []float64
	for _, l := range logs {
		ex := l.Execution
		if !ex.Filled() {
			sum.NoTrades++
			continue
		}
		sum.TotalTrades++
		if ex.Outcome == types.OutcomeWin {
			sum.Wins++
		} else {
			sum.Losses++
		}
		sum.TotalPips += ex.PnLPips
		sum.TotalUSD += ex.PnLUSD
		pips = append(pips, float64(ex.PnLPips))
		if sum.TotalTrades == 1 || ex.PnLPips > sum.BestPips {
			sum.BestPips = ex.PnLPips
		}
		if sum.TotalTrades == 1 || ex.PnLPips < sum.WorstPips {
			sum.WorstPips = ex.PnLPips
		}
	}

	if sum.TotalTrades == 0 {
		return sum
	}
	sum.WinRate = round2(float64(sum.Wins) / float64(sum.TotalTrades))
	mean, std := stat.MeanStdDev(pips, nil)
	sum.AvgPips = round2(mean)
	if len(pips) > 1 {
		sum.PipsStdDev = round2(std)
	}
	return sum
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
