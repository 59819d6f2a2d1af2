package market

import (
	"math"

	"github.com/markcheno/go-talib"

	"gemex-ace/internal/types"
)

const (
	TrendBullish = "bullish"
	TrendBearish = "bearish"
	TrendRanging = "ranging"
	TrendUnknown = "unknown"
)

// last returns the final value of a talib output series.
func last(series []float64) float64 {
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

// EMA is the exponential moving average of the closes at the last bar. Short
// series fall back to the simple mean.
func EMA(closes []float64, period int) float64 {
	if len(closes) == 0 || period <= 0 {
		return math.NaN()
	}
	if len(closes) < period {
		sum := 0.0
		for _, c := range closes {
			sum += c
		}
		return sum / float64(len(closes))
	}
	return last(talib.Ema(closes, period))
}

func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 || period <= 0 {
		return math.NaN()
	}
	return last(talib.Rsi(closes, period))
}

func ATR(highs, lows, closes []float64, period int) float64 {
	if len(highs) != len(lows) || len(lows) != len(closes) || len(closes) < period+1 || period <= 0 {
		return math.NaN()
	}
	return last(talib.Atr(highs, lows, closes, period))
}

// Trend classifies price against EMA50 and EMA200.
func Trend(price, ema50, ema200 float64) string {
	switch {
	case math.IsNaN(ema50) || math.IsNaN(ema200):
		return TrendUnknown
	case price > ema50 && ema50 > ema200:
		return TrendBullish
	case price < ema50 && ema50 < ema200:
		return TrendBearish
	default:
		return TrendRanging
	}
}

// SupportResistance is the lowest low and highest high of the last n bars.
func SupportResistance(candles []types.Candle, n int) (support, resistance float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	if n > len(candles) || n <= 0 {
		n = len(candles)
	}
	window := candles[len(candles)-n:]
	support, resistance = window[0].Low, window[0].High
	for _, c := range window[1:] {
		support = math.Min(support, c.Low)
		resistance = math.Max(resistance, c.High)
	}
	return support, resistance
}

// Analyze summarizes one timeframe of bars.
func Analyze(candles []types.Candle) types.TimeframeAnalysis {
	if len(candles) == 0 {
		return types.TimeframeAnalysis{Trend: TrendUnknown}
	}
	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		closes[i], highs[i], lows[i] = c.Close, c.High, c.Low
	}

	price := closes[len(closes)-1]
	ema50 := EMA(closes, 50)
	ema200 := EMA(closes, 200)
	support, resistance := SupportResistance(candles, 20)

	return types.TimeframeAnalysis{
		Trend:      Trend(price, ema50, ema200),
		EMA50:      round5(ema50),
		EMA200:     round5(ema200),
		RSI14:      round2(RSI(closes, 14)),
		ATR14:      round5(ATR(highs, lows, closes, 14)),
		Support:    round5(support),
		Resistance: round5(resistance),
	}
}

// NaN cannot be JSON encoded, so missing indicators become zero.
func round5(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*1e5) / 1e5
}

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}
