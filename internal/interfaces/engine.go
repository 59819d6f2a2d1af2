package interfaces

import (
	"context"
	"time"

	"gemex-ace/internal/types"
)

type Simulator interface {
	Simulate(ctx context.Context, plan types.TradingPlan) types.TradeLog
}

type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type Engine interface {
	RunDaily(ctx context.Context, day time.Time) (*types.DailyResult, error)
	RunWeekly(ctx context.Context, weekEnding time.Time) (*types.WeeklyResult, error)
}
