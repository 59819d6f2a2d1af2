package interfaces

import (
	"context"
	"time"

	"gemex-ace/internal/types"
)

// PriceSource returns OHLC bars in [from, to) in ascending time order.
type PriceSource interface {
	Bars(ctx context.Context, symbol string, from, to time.Time, interval types.Interval) ([]types.Candle, error)
}

type CalendarSource interface {
	Events(ctx context.Context, day time.Time) ([]types.CalendarEvent, error)
}

type SnapshotBuilder interface {
	Build(ctx context.Context, now time.Time) types.MarketSnapshot
}
