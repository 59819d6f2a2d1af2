package market

import (
	"context"
	"sort"
	"strings"
	"time"

	"gemex-ace/internal/interfaces"
	"gemex-ace/internal/logger"
	"gemex-ace/internal/types"
)

const dailyLookback = 300 * 24 * time.Hour

// Builder assembles the market snapshot handed to the plan generator.
type Builder struct {
	symbol       string
	prices       interfaces.PriceSource
	calendar     interfaces.CalendarSource
	intermarket  map[string]string
	hourLookback time.Duration
}

var _ interfaces.SnapshotBuilder = (*Builder)(nil)

// NewBuilder takes intermarket as display name -> source symbol. calendar may be nil.
func NewBuilder(symbol string, prices interfaces.PriceSource, calendar interfaces.CalendarSource, intermarket map[string]string, lookbackDays int) *Builder {
	if lookbackDays <= 0 {
		lookbackDays = 30
	}
	return &Builder{
		symbol:       symbol,
		prices:       prices,
		calendar:     calendar,
		intermarket:  intermarket,
		hourLookback: time.Duration(lookbackDays) * 24 * time.Hour,
	}
}

// Build never fails. Each data problem is appended to the snapshot's error
// field and the rest of the snapshot is still filled in.
func (b *Builder) Build(ctx context.Context, now time.Time) types.MarketSnapshot {
	snap := types.MarketSnapshot{
		Timestamp:   now.UTC(),
		Symbol:      b.symbol,
		Timeframes:  map[string]types.TimeframeAnalysis{},
		Intermarket: map[string]string{},
		NewsEvents:  []types.CalendarEvent{},
	}
	var problems []string
	fail := func(what string, err error) {
		logger.Warn(ctx, "Market snapshot degraded", "component", what, "error", err)
		problems = append(problems, what+": "+err.Error())
	}

	hourly, err := b.prices.Bars(ctx, b.symbol, now.Add(-b.hourLookback), now, types.Interval1h)
	if err != nil {
		fail("1h bars", err)
	} else {
		snap.Timeframes["1h"] = Analyze(hourly)
		if len(hourly) > 0 {
			snap.CurrentPrice = hourly[len(hourly)-1].Close
		}
	}

	daily, err := b.prices.Bars(ctx, b.symbol, now.Add(-dailyLookback), now, types.Interval1d)
	if err != nil {
		fail("1d bars", err)
	} else {
		snap.Timeframes["1d"] = Analyze(daily)
		if snap.CurrentPrice == 0 && len(daily) > 0 {
			snap.CurrentPrice = daily[len(daily)-1].Close
		}
	}

	names := make([]string, 0, len(b.intermarket))
	for name := range b.intermarket {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		bars, err := b.prices.Bars(ctx, b.intermarket[name], now.Add(-dailyLookback), now, types.Interval1d)
		if err != nil {
			fail("intermarket "+name, err)
			snap.Intermarket[name] = TrendUnknown
			continue
		}
		snap.Intermarket[name] = intermarketTrend(bars)
	}

	if b.calendar != nil {
		events, err := b.calendar.Events(ctx, now)
		if err != nil {
			fail("calendar", err)
		} else {
			snap.NewsEvents = events
		}
	}

	snap.Error = strings.Join(problems, "; ")
	logger.Info(ctx, "Market snapshot built",
		"symbol", b.symbol,
		"price", snap.CurrentPrice,
		"timeframes", len(snap.Timeframes),
		"events", len(snap.NewsEvents),
		"degraded", snap.Error != "",
	)
	return snap
}

func intermarketTrend(bars []types.Candle) string {
	if len(bars) == 0 {
		return TrendUnknown
	}
	closes := make([]float64, len(bars))
	for i, c := range bars {
		closes[i] = c.Close
	}
	ema := EMA(closes, 50)
	price := closes[len(closes)-1]
	switch {
	case price > ema:
		return TrendBullish
	case price < ema:
		return TrendBearish
	}
	return TrendRanging
}
