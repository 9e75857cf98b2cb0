// Package strategy ships the built-in pattern detectors. Each evaluator is a
// pure function over a closed-candle window; the engine treats them through
// the interfaces.Evaluator contract and knows nothing about their internals.
package strategy

import (
	"candle-trading-bot/internal/ta"
	"candle-trading-bot/internal/types"
)

type Trend string

const (
	TrendBullish  Trend = "bullish"
	TrendBearish  Trend = "bearish"
	TrendSideways Trend = "sideways"
)

const (
	trendShortPeriod = 5
	trendLongPeriod  = 10
	trendThreshold   = 0.001 // 0.1% MA separation required to call a trend
	atrPeriod        = 14
)

// TrendDirection classifies the market using a dual moving-average spread.
// Short windows fall back to a three-candle close comparison so trend
// detection still works on the small windows the prefetcher keeps.
func TrendDirection(window []types.Candle) Trend {
	if len(window) < trendLongPeriod {
		if len(window) < 3 {
			return TrendSideways
		}
		first := window[len(window)-3].Close
		last := window[len(window)-1].Close
		switch {
		case last > first*(1+trendThreshold):
			return TrendBullish
		case last < first*(1-trendThreshold):
			return TrendBearish
		default:
			return TrendSideways
		}
	}

	closes := make([]float64, 0, trendLongPeriod)
	for _, c := range window[len(window)-trendLongPeriod:] {
		closes = append(closes, c.Close)
	}
	maShort := ta.SMA(closes, trendShortPeriod)
	maLong := ta.SMA(closes, trendLongPeriod)

	switch {
	case maShort > maLong*(1+trendThreshold):
		return TrendBullish
	case maShort < maLong*(1-trendThreshold):
		return TrendBearish
	default:
		return TrendSideways
	}
}

// atrPercent returns ATR as a percentage of the recent average close, or 0
// when the window is too short to measure.
func atrPercent(window []types.Candle) float64 {
	highs := make([]float64, len(window))
	lows := make([]float64, len(window))
	closes := make([]float64, len(window))
	for i, c := range window {
		highs[i], lows[i], closes[i] = c.High, c.Low, c.Close
	}

	atr := ta.ATR(highs, lows, closes, atrPeriod)
	if atr == 0 {
		return 0
	}

	n := len(closes)
	if n > 20 {
		n = 20
	}
	sum := 0.0
	for _, cl := range closes[len(closes)-n:] {
		sum += cl
	}
	avg := sum / float64(n)
	if avg <= 0 {
		return 0
	}
	return atr / avg * 100
}
