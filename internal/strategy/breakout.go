package strategy

import (
	"fmt"

	"candle-trading-bot/internal/types"
)

// Breakout trades the candle after a fresh extreme: when the previous candle
// printed the lowest low (or highest high) of the recent window and the
// candle that just closed breaks through its range, momentum tends to carry
// one more candle.
type Breakout struct {
	MinCandles    int     // minimum closed candles required to evaluate
	Lookback      int     // candles the extreme is measured against
	MaxATRPercent float64 // volatility ceiling; 0 disables the filter
}

func NewBreakout(minCandles, lookback int, maxATRPercent float64) *Breakout {
	return &Breakout{MinCandles: minCandles, Lookback: lookback, MaxATRPercent: maxATRPercent}
}

func (b *Breakout) Name() string { return "breakout" }

// Precondition reports whether the last closed candle is a strict low or high
// extreme against the Lookback candles before it. This is the cheap half-time
// test that shortlists instruments for full analysis at close.
func (b *Breakout) Precondition(window []types.Candle) (lowExtreme, highExtreme bool) {
	return b.extremes(window, len(window)-1)
}

// extremes tests window[at] against the Lookback candles preceding it.
func (b *Breakout) extremes(window []types.Candle, at int) (bool, bool) {
	if at < b.Lookback || at >= len(window) {
		return false, false
	}
	ref := window[at]
	minLow := window[at-b.Lookback].Low
	maxHigh := window[at-b.Lookback].High
	for _, c := range window[at-b.Lookback+1 : at] {
		if c.Low < minLow {
			minLow = c.Low
		}
		if c.High > maxHigh {
			maxHigh = c.High
		}
	}
	return ref.Low < minLow, ref.High > maxHigh
}

// Evaluate runs on the full window at candle close. window[-2] is the extreme
// candle identified at half-time, window[-1] is the candle that just closed.
func (b *Breakout) Evaluate(instrument string, window []types.Candle) types.Signal {
	sig := types.Signal{Instrument: instrument, Strategy: b.Name()}

	if len(window) < b.MinCandles {
		sig.Diagnostic = fmt.Sprintf("need %d+ candles (have %d)", b.MinCandles, len(window))
		return sig
	}

	lowExtreme, highExtreme := b.extremes(window, len(window)-2)
	if !lowExtreme && !highExtreme {
		sig.Diagnostic = "no extreme"
		return sig
	}

	if b.MaxATRPercent > 0 {
		if ap := atrPercent(window); ap > b.MaxATRPercent {
			sig.Diagnostic = fmt.Sprintf("extreme volatility (ATR %.3f%%)", ap)
			return sig
		}
	}

	trend := TrendDirection(window)
	prev := window[len(window)-2]
	curr := window[len(window)-1]

	if lowExtreme && curr.Close > prev.High {
		if trend == TrendBearish {
			sig.Diagnostic = "call against bearish trend"
			return sig
		}
		// Close pinned to the high means no room left in the move.
		if prev.IsBullish() && prev.Close == prev.High {
			sig.Diagnostic = "prev green candle close=high"
			return sig
		}
		if curr.IsBullish() && curr.Close == curr.High {
			sig.Diagnostic = "curr green candle close=high"
			return sig
		}
		sig.Direction = types.DirectionCall
		sig.Valid = true
		sig.Diagnostic = fmt.Sprintf("breakout call (%s trend)", trend)
		return sig
	}

	if highExtreme && curr.Close < prev.Low {
		if trend == TrendBullish {
			sig.Diagnostic = "put against bullish trend"
			return sig
		}
		if prev.IsBearish() && prev.Close == prev.Low {
			sig.Diagnostic = "prev red candle close=low"
			return sig
		}
		if curr.IsBearish() && curr.Close == curr.Low {
			sig.Diagnostic = "curr red candle close=low"
			return sig
		}
		sig.Direction = types.DirectionPut
		sig.Valid = true
		sig.Diagnostic = fmt.Sprintf("breakout put (%s trend)", trend)
		return sig
	}

	sig.Diagnostic = "no breakout"
	return sig
}
