package strategy

import (
	"fmt"

	"candle-trading-bot/internal/types"
)

// Engulfing trades reversal bars: a candle whose range fully covers the
// previous candle's range, closing against the previous candle's color.
// It has no half-time precondition; the engine analyzes it from the
// prefetch-phase cache.
type Engulfing struct {
	MinCandles   int
	MinBodyRatio float64 // body must exceed this share of the bar's range
}

func NewEngulfing(minCandles int, minBodyRatio float64) *Engulfing {
	return &Engulfing{MinCandles: minCandles, MinBodyRatio: minBodyRatio}
}

func (e *Engulfing) Name() string { return "engulfing" }

func (e *Engulfing) Evaluate(instrument string, window []types.Candle) types.Signal {
	sig := types.Signal{Instrument: instrument, Strategy: e.Name()}

	if len(window) < e.MinCandles {
		sig.Diagnostic = fmt.Sprintf("need %d+ candles (have %d)", e.MinCandles, len(window))
		return sig
	}

	prev := window[len(window)-2]
	curr := window[len(window)-1]

	if !(curr.High > prev.High && curr.Low < prev.Low) {
		sig.Diagnostic = "no engulfing"
		return sig
	}

	trend := TrendDirection(window)

	if curr.IsBullish() && prev.IsBearish() {
		if prev.Close == prev.Low {
			sig.Diagnostic = "prev red candle close=low"
			return sig
		}
		if curr.Close == curr.High {
			sig.Diagnostic = "curr green candle close=high"
			return sig
		}
		if !e.strongBody(curr) {
			sig.Diagnostic = "weak engulfing body"
			return sig
		}
		sig.Direction = types.DirectionCall
		sig.Valid = true
		sig.Diagnostic = fmt.Sprintf("bullish engulfing (%s trend)", trend)
		return sig
	}

	if curr.IsBearish() && prev.IsBullish() {
		if prev.Close == prev.High {
			sig.Diagnostic = "prev green candle close=high"
			return sig
		}
		if curr.Close == curr.Low {
			sig.Diagnostic = "curr red candle close=low"
			return sig
		}
		if !e.strongBody(curr) {
			sig.Diagnostic = "weak engulfing body"
			return sig
		}
		sig.Direction = types.DirectionPut
		sig.Valid = true
		sig.Diagnostic = fmt.Sprintf("bearish engulfing (%s trend)", trend)
		return sig
	}

	sig.Diagnostic = "no valid signal"
	return sig
}

func (e *Engulfing) strongBody(c types.Candle) bool {
	totalRange := c.High - c.Low
	if totalRange <= 0 {
		return false
	}
	body := c.Close - c.Open
	if body < 0 {
		body = -body
	}
	return body > e.MinBodyRatio*totalRange
}
