package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gemex-ace/internal/api"
	"gemex-ace/internal/interfaces"
	"gemex-ace/internal/logger"
	"gemex-ace/internal/types"
)

const polygonBaseURL = "https://api.polygon.io"

// PolygonSource reads aggregates from the Polygon.io REST API.
type PolygonSource struct {
	client    *api.Client
	apiKey    string
	symbolMap map[string]string
	limiter   *RateLimiter
	cache     *BarCache
}

var _ interfaces.PriceSource = (*PolygonSource)(nil)

type PolygonOption func(*PolygonSource)

func WithPolygonBaseURL(u string) PolygonOption {
	return func(p *PolygonSource) {
		p.client = api.NewClient(api.WithBaseURL(strings.TrimRight(u, "/")), api.WithTimeout(30*time.Second))
	}
}

func WithCache(c *BarCache) PolygonOption {
	return func(p *PolygonSource) { p.cache = c }
}

func WithRateLimiter(rl *RateLimiter) PolygonOption {
	return func(p *PolygonSource) { p.limiter = rl }
}

// NewPolygonSource maps configured symbols (EURUSD) to Polygon tickers
// (C:EURUSD). Unmapped forex pairs get the C: prefix.
func NewPolygonSource(apiKey string, symbolMap map[string]string, opts ...PolygonOption) *PolygonSource {
	p := &PolygonSource{
		client:    api.NewClient(api.WithBaseURL(polygonBaseURL), api.WithTimeout(30*time.Second), api.WithLogging(true)),
		apiKey:    apiKey,
		symbolMap: symbolMap,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PolygonSource) ticker(symbol string) string {
	if t, ok := p.symbolMap[symbol]; ok {
		return t
	}
	if len(symbol) == 6 {
		return "C:" + strings.ToUpper(symbol)
	}
	return symbol
}

func polygonSpan(interval types.Interval) (int, string) {
	switch interval {
	case types.Interval15m:
		return 15, "minute"
	case types.Interval1h:
		return 1, "hour"
	default:
		return 1, "day"
	}
}

type polygonAggs struct {
	Status       string `json:"status"`
	ResultsCount int    `json:"resultsCount"`
	Results      []struct {
		T int64   `json:"t"`
		O float64 `json:"o"`
		H float64 `json:"h"`
		L float64 `json:"l"`
		C float64 `json:"c"`
		V float64 `json:"v"`
	} `json:"results"`
	Error string `json:"error"`
}

func (p *PolygonSource) Bars(ctx context.Context, symbol string, from, to time.Time, interval types.Interval) ([]types.Candle, error) {
	if p.apiKey == "" {
		return nil, errors.New("POLYGON_API_KEY not set")
	}
	ticker := p.ticker(symbol)
	key := CacheKey("polygon", ticker, string(interval), from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	return p.cache.GetOrFetch(key, func() ([]types.Candle, error) {
		return p.fetch(ctx, ticker, from, to, interval)
	})
}

func (p *PolygonSource) fetch(ctx context.Context, ticker string, from, to time.Time, interval types.Interval) ([]types.Candle, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	mult, span := polygonSpan(interval)
	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/%d/%s/%d/%d?adjusted=true&sort=asc&limit=50000&apiKey=%s",
		url.PathEscape(ticker), mult, span, from.UnixMilli(), to.UnixMilli()-1, url.QueryEscape(p.apiKey))

	resp, err := p.client.DoWithRetry(api.NewRequest(http.MethodGet, path).WithContext(ctx), api.DefaultRetryConfig())
	if err != nil {
		return nil, fmt.Errorf("polygon aggregates %s: %w", ticker, err)
	}
	var out polygonAggs
	if err := resp.ParseJSON(&out); err != nil {
		return nil, fmt.Errorf("polygon aggregates %s: %w", ticker, err)
	}
	if out.Status == "ERROR" {
		return nil, fmt.Errorf("polygon aggregates %s: %s", ticker, out.Error)
	}

	bars := make([]types.Candle, 0, len(out.Results))
	for _, r := range out.Results {
		t := time.UnixMilli(r.T).UTC()
		if t.Before(from) || !t.Before(to) {
			continue
		}
		bars = append(bars, types.Candle{Time: t, Open: r.O, High: r.H, Low: r.L, Close: r.C, Volume: r.V})
	}
	logger.Debug(ctx, "Fetched polygon aggregates", "ticker", ticker, "interval", interval, "bars", len(bars))
	return bars, nil
}
