package market

import (
	"context"
	"fmt"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"gemex-ace/internal/interfaces"
	"gemex-ace/internal/types"
)

// historicalClient is the part of kiteconnect.Client used for bars.
type historicalClient interface {
	GetHistoricalData(instrumentToken int, interval string, fromDate time.Time, toDate time.Time, continuous bool, OI bool) ([]kiteconnect.HistoricalData, error)
}

// KiteSource reads historical candles from Zerodha Kite Connect for
// instruments listed in market.kite_instruments (e.g. the EURINR future).
type KiteSource struct {
	kc          historicalClient
	instruments map[string]int
	cache       *BarCache
}

var _ interfaces.PriceSource = (*KiteSource)(nil)

func NewKiteSource(apiKey, accessToken string, instruments map[string]int, cache *BarCache) *KiteSource {
	kc := kiteconnect.New(apiKey)
	kc.SetAccessToken(accessToken)
	return &KiteSource{kc: kc, instruments: instruments, cache: cache}
}

func kiteInterval(interval types.Interval) string {
	switch interval {
	case types.Interval15m:
		return "15minute"
	case types.Interval1h:
		return "60minute"
	default:
		return "day"
	}
}

func (k *KiteSource) Bars(ctx context.Context, symbol string, from, to time.Time, interval types.Interval) ([]types.Candle, error) {
	token, ok := k.instruments[symbol]
	if !ok {
		return nil, fmt.Errorf("no kite instrument token configured for %s", symbol)
	}
	key := CacheKey("kite", symbol, string(interval), from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	return k.cache.GetOrFetch(key, func() ([]types.Candle, error) {
		rows, err := k.kc.GetHistoricalData(token, kiteInterval(interval), from, to, false, false)
		if err != nil {
			return nil, fmt.Errorf("kite historical %s: %w", symbol, err)
		}
		bars := make([]types.Candle, 0, len(rows))
		for _, r := range rows {
			t := r.Date.Time.UTC()
			if t.Before(from) || !t.Before(to) {
				continue
			}
			bars = append(bars, types.Candle{Time: t, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: float64(r.Volume)})
		}
		return bars, nil
	})
}
