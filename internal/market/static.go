package market

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"gemex-ace/internal/interfaces"
	"gemex-ace/internal/types"
)

// StaticSource synthesizes a smooth, repeatable price series so the whole
// pipeline can run offline. The same bar always has the same prices no matter
// which range it was requested in.
type StaticSource struct {
	bases map[string]float64
}

var _ interfaces.PriceSource = (*StaticSource)(nil)

func NewStaticSource() *StaticSource {
	return &StaticSource{bases: map[string]float64{
		"EURUSD": 1.08,
		"GBPUSD": 1.27,
		"USDJPY": 148.0,
		"DXY":    104.0,
		"SPX500": 5000.0,
		"US10Y":  4.2,
	}}
}

func (s *StaticSource) base(symbol string) float64 {
	if b, ok := s.bases[strings.ToUpper(symbol)]; ok {
		return b
	}
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return 50 + float64(h.Sum32()%100)
}

func (s *StaticSource) priceAt(base float64, t time.Time) float64 {
	hours := float64(t.Unix()) / 3600
	days := hours / 24
	wave := 0.004*math.Sin(2*math.Pi*hours/26) +
		0.002*math.Sin(2*math.Pi*hours/7.3) +
		0.012*math.Sin(2*math.Pi*days/45)
	return base * (1 + wave)
}

func (s *StaticSource) noise(symbol string, t time.Time) float64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d", symbol, t.Unix())
	return float64(h.Sum64()%1000) / 1000
}

// Bars returns weekday bars aligned to the interval in [from, to).
func (s *StaticSource) Bars(ctx context.Context, symbol string, from, to time.Time, interval types.Interval) ([]types.Candle, error) {
	step := interval.Duration()
	base := s.base(symbol)
	bars := []types.Candle{}
	for t := from.UTC().Truncate(step); t.Before(to); t = t.Add(step) {
		if t.Before(from) {
			continue
		}
		if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		open := s.priceAt(base, t)
		closePx := s.priceAt(base, t.Add(step))
		wick := base * 0.0004 * s.noise(symbol, t)
		bars = append(bars, types.Candle{
			Time:   t,
			Open:   round5(open),
			High:   round5(math.Max(open, closePx) + wick),
			Low:    round5(math.Min(open, closePx) - wick),
			Close:  round5(closePx),
			Volume: math.Round(1000 + 9000*s.noise(symbol+"v", t)),
		})
	}
	return bars, nil
}
