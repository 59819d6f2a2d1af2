package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"github.com/zerodha/gokiteconnect/v4/models"

	"gemex-ace/internal/types"
)

var monday = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

func ramp(n int, start, step float64) []types.Candle {
	out := make([]types.Candle, n)
	for i := range out {
		c := start + float64(i)*step
		out[i] = types.Candle{
			Time:  monday.Add(time.Duration(i) * time.Hour),
			Open:  c - step/2,
			High:  c + 0.0005,
			Low:   c - 0.0005,
			Close: c,
		}
	}
	return out
}

func TestTrend(t *testing.T) {
	assert.Equal(t, TrendBullish, Trend(1.10, 1.09, 1.08))
	assert.Equal(t, TrendBearish, Trend(1.07, 1.08, 1.09))
	assert.Equal(t, TrendRanging, Trend(1.085, 1.09, 1.08))
}

func TestAnalyzeRisingSeries(t *testing.T) {
	a := Analyze(ramp(250, 1.0, 0.0002))

	assert.Equal(t, TrendBullish, a.Trend)
	assert.Greater(t, a.EMA50, a.EMA200)
	assert.Greater(t, a.RSI14, 70.0)
	assert.InDelta(t, 0.001, a.ATR14, 0.0002)
	assert.InDelta(t, 1.046-0.0005, a.Support, 1e-9)
	assert.InDelta(t, 1.0498+0.0005, a.Resistance, 1e-9)
}

func TestAnalyzeShortSeriesHasNoNaN(t *testing.T) {
	a := Analyze(ramp(5, 1.0, 0.001))
	assert.Zero(t, a.RSI14)
	assert.Zero(t, a.ATR14)
	assert.NotZero(t, a.EMA50)
	assert.Equal(t, TrendRanging, a.Trend)

	assert.Equal(t, TrendUnknown, Analyze(nil).Trend)
}

func TestStaticSourceIsRepeatable(t *testing.T) {
	src := NewStaticSource()
	ctx := context.Background()
	from := monday.Add(13 * time.Hour)

	a, err := src.Bars(ctx, "EURUSD", from, from.Add(8*time.Hour), types.Interval15m)
	require.NoError(t, err)
	require.Len(t, a, 32)
	assert.Equal(t, from, a[0].Time)

	// The same bar inside a wider window has identical prices.
	b, err := src.Bars(ctx, "EURUSD", from.Add(-24*time.Hour), from.Add(time.Hour), types.Interval15m)
	require.NoError(t, err)
	assert.Equal(t, a[0], b[len(b)-4])

	for _, c := range a {
		assert.LessOrEqual(t, c.Low, c.Open)
		assert.GreaterOrEqual(t, c.High, c.Close)
		assert.InDelta(t, 1.08, c.Close, 0.03)
	}
}

func TestStaticSourceSkipsWeekends(t *testing.T) {
	sat := time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC)
	bars, err := NewStaticSource().Bars(context.Background(), "EURUSD", sat, sat.Add(48*time.Hour), types.Interval1h)
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestBarCache(t *testing.T) {
	c := NewBarCache(t.TempDir(), time.Hour)
	now := monday
	c.now = func() time.Time { return now }

	var fetches int
	fetch := func() ([]types.Candle, error) {
		fetches++
		return ramp(3, 1.0, 0.001), nil
	}
	key := CacheKey("polygon", "C:EURUSD", "1h")

	_, err := c.GetOrFetch(key, fetch)
	require.NoError(t, err)
	bars, err := c.GetOrFetch(key, fetch)
	require.NoError(t, err)
	assert.Len(t, bars, 3)
	assert.Equal(t, 1, fetches)

	now = now.Add(2 * time.Hour)
	_, err = c.GetOrFetch(key, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, fetches)

	var disabled *BarCache
	_, err = disabled.GetOrFetch(key, fetch)
	require.NoError(t, err)
	assert.Equal(t, 3, fetches)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2)
	now := monday
	rl.now = func() time.Time { return now }
	rl.lastRefill = now

	_, ok := rl.tryAcquire()
	assert.True(t, ok)
	_, ok = rl.tryAcquire()
	assert.True(t, ok)
	wait, ok := rl.tryAcquire()
	assert.False(t, ok)
	assert.Equal(t, 30*time.Second, wait)

	now = now.Add(31 * time.Second)
	_, ok = rl.tryAcquire()
	assert.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, rl.Wait(ctx), context.Canceled)

	var none *RateLimiter
	assert.NoError(t, none.Wait(context.Background()))
}

func TestPolygonSource(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.True(t, strings.HasPrefix(r.URL.Path, "/v2/aggs/ticker/C:EURUSD/range/15/minute/"), r.URL.Path)
		assert.Equal(t, "k", r.URL.Query().Get("apiKey"))
		ts := monday.Add(13 * time.Hour).UnixMilli()
		fmt.Fprintf(w, `{"status":"OK","resultsCount":2,"results":[
			{"t":%d,"o":1.04,"h":1.042,"l":1.039,"c":1.041,"v":100},
			{"t":%d,"o":1.041,"h":1.043,"l":1.04,"c":1.042,"v":120}]}`, ts, ts+int64(15*time.Minute/time.Millisecond))
	}))
	defer srv.Close()

	src := NewPolygonSource("k", nil,
		WithPolygonBaseURL(srv.URL),
		WithCache(NewBarCache(t.TempDir(), time.Hour)),
	)
	from := monday.Add(13 * time.Hour)
	bars, err := src.Bars(context.Background(), "EURUSD", from, from.Add(8*time.Hour), types.Interval15m)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, from, bars[0].Time)
	assert.Equal(t, 1.043, bars[1].High)

	_, err = src.Bars(context.Background(), "EURUSD", from, from.Add(8*time.Hour), types.Interval15m)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPolygonRequiresKey(t *testing.T) {
	_, err := NewPolygonSource("", nil).Bars(context.Background(), "EURUSD", monday, monday.Add(time.Hour), types.Interval1h)
	assert.ErrorContains(t, err, "POLYGON_API_KEY")
}

type fakeKite struct {
	token    int
	interval string
	rows     []kiteconnect.HistoricalData
}

func (f *fakeKite) GetHistoricalData(token int, interval string, from, to time.Time, continuous, oi bool) ([]kiteconnect.HistoricalData, error) {
	f.token, f.interval = token, interval
	return f.rows, nil
}

func TestKiteSource(t *testing.T) {
	fk := &fakeKite{rows: []kiteconnect.HistoricalData{
		{Date: models.Time{Time: monday.Add(9 * time.Hour)}, Open: 89.1, High: 89.3, Low: 89.0, Close: 89.2, Volume: 10},
		{Date: models.Time{Time: monday.Add(10 * time.Hour)}, Open: 89.2, High: 89.4, Low: 89.1, Close: 89.3, Volume: 12},
	}}
	src := &KiteSource{kc: fk, instruments: map[string]int{"EURINR": 12345}}

	bars, err := src.Bars(context.Background(), "EURINR", monday, monday.Add(10*time.Hour), types.Interval1h)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 89.2, bars[0].Close)
	assert.Equal(t, 12345, fk.token)
	assert.Equal(t, "60minute", fk.interval)

	_, err = src.Bars(context.Background(), "EURUSD", monday, monday.Add(time.Hour), types.Interval1h)
	assert.ErrorContains(t, err, "no kite instrument")
}

const calendarHTML = `<html><body><table class="calendar__table">
<tr class="calendar__row calendar__row--day-breaker"><td class="calendar__cell"><span>Sun</span> <span>Jan 5</span></td></tr>
<tr class="calendar__row"><td class="calendar__time">8:30am</td><td class="calendar__currency">USD</td>
  <td class="calendar__impact"><span class="icon icon--ff-impact-red" title="High Impact Expected"></span></td>
  <td class="calendar__event">Yesterday's event</td><td class="calendar__forecast"></td><td class="calendar__previous"></td></tr>
<tr class="calendar__row calendar__row--day-breaker"><td class="calendar__cell"><span>Mon</span> <span>Jan 6</span></td></tr>
<tr class="calendar__row"><td class="calendar__time">4:00am</td><td class="calendar__currency">EUR</td>
  <td class="calendar__impact"><span class="icon icon--ff-impact-red" title="High Impact Expected"></span></td>
  <td class="calendar__event">German Prelim CPI m/m</td><td class="calendar__forecast">0.4%</td><td class="calendar__previous">-0.2%</td></tr>
<tr class="calendar__row"><td class="calendar__time"></td><td class="calendar__currency">USD</td>
  <td class="calendar__impact"><span class="icon icon--ff-impact-red"></span></td>
  <td class="calendar__event">ISM Services PMI</td><td class="calendar__forecast">53.5</td><td class="calendar__previous">52.1</td></tr>
<tr class="calendar__row"><td class="calendar__time">10:00am</td><td class="calendar__currency">USD</td>
  <td class="calendar__impact"><span class="icon icon--ff-impact-ora" title="Medium Impact Expected"></span></td>
  <td class="calendar__event">Factory Orders m/m</td><td class="calendar__forecast"></td><td class="calendar__previous"></td></tr>
<tr class="calendar__row"><td class="calendar__time">7:30pm</td><td class="calendar__currency">JPY</td>
  <td class="calendar__impact"><span class="icon icon--ff-impact-red" title="High Impact Expected"></span></td>
  <td class="calendar__event">BOJ Speech</td><td class="calendar__forecast"></td><td class="calendar__previous"></td></tr>
</table></body></html>`

func TestParseCalendar(t *testing.T) {
	events, err := ParseCalendar(strings.NewReader(calendarHTML), monday.Add(12*time.Hour), []string{"EUR", "USD"})
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "German Prelim CPI m/m", events[0].EventName)
	assert.Equal(t, "EUR", events[0].Currency)
	assert.Equal(t, "0.4%", events[0].Forecast)
	assert.Equal(t, "High", events[0].Impact)

	assert.Equal(t, "ISM Services PMI", events[1].EventName)
	assert.Equal(t, "4:00am", events[1].TimeUTC)
}

func TestParseCalendarWithoutTable(t *testing.T) {
	_, err := ParseCalendar(strings.NewReader("<html></html>"), monday, []string{"USD"})
	assert.Error(t, err)
}

func TestCalendarFetchesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.UserAgent(), "Mozilla")
		assert.Equal(t, "en-US,en;q=0.9", r.Header.Get("Accept-Language"))
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(calendarHTML))
	}))
	defer srv.Close()

	events, err := NewCalendar(srv.URL+"/calendar", []string{"EUR"}, 5*time.Second).Events(context.Background(), monday)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "German Prelim CPI m/m", events[0].EventName)
}

type stubPrices struct {
	fail map[string]bool
}

func (s stubPrices) Bars(ctx context.Context, symbol string, from, to time.Time, interval types.Interval) ([]types.Candle, error) {
	if s.fail[symbol] {
		return nil, errors.New("vendor down")
	}
	return NewStaticSource().Bars(ctx, symbol, from, to, interval)
}

type stubCalendar struct{ err error }

func (s stubCalendar) Events(ctx context.Context, day time.Time) ([]types.CalendarEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []types.CalendarEvent{{EventName: "NFP", Currency: "USD", Impact: "High"}}, nil
}

func TestBuilderBuildsFullSnapshot(t *testing.T) {
	b := NewBuilder("EURUSD", stubPrices{}, stubCalendar{}, map[string]string{"DXY": "DXY", "SPX500": "SPX500"}, 30)
	snap := b.Build(context.Background(), monday.Add(12*time.Hour))

	assert.Empty(t, snap.Error)
	assert.Equal(t, "EURUSD", snap.Symbol)
	assert.NotZero(t, snap.CurrentPrice)
	assert.Contains(t, snap.Timeframes, "1h")
	assert.Contains(t, snap.Timeframes, "1d")
	assert.Len(t, snap.Intermarket, 2)
	assert.Len(t, snap.NewsEvents, 1)
}

func TestBuilderDegradesPerComponent(t *testing.T) {
	b := NewBuilder("EURUSD", stubPrices{fail: map[string]bool{"DXY": true}}, stubCalendar{err: errors.New("blocked")}, map[string]string{"DXY": "DXY"}, 30)
	snap := b.Build(context.Background(), monday.Add(12*time.Hour))

	assert.Contains(t, snap.Error, "intermarket DXY")
	assert.Contains(t, snap.Error, "calendar")
	assert.Equal(t, TrendUnknown, snap.Intermarket["DXY"])
	assert.NotZero(t, snap.CurrentPrice)
	assert.NotNil(t, snap.NewsEvents)
}
