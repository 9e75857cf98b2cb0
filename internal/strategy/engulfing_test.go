package strategy

import (
	"testing"

	"candle-trading-bot/internal/types"
)

func TestEngulfingBullish(t *testing.T) {
	e := NewEngulfing(10, 0.3)
	w := flatWindow(10)
	// Red candle, then a green bar engulfing its whole range.
	w[8] = bar(1.102, 1.103, 1.098, 1.099)
	w[9] = bar(1.0985, 1.105, 1.097, 1.104)

	sig := e.Evaluate("EURUSD", w)
	if !sig.Valid {
		t.Fatalf("expected valid signal, diagnostic: %s", sig.Diagnostic)
	}
	if sig.Direction != types.DirectionCall {
		t.Errorf("expected call, got %s", sig.Direction)
	}
}

func TestEngulfingBearish(t *testing.T) {
	e := NewEngulfing(10, 0.3)
	w := flatWindow(10)
	w[8] = bar(1.099, 1.103, 1.098, 1.102)
	w[9] = bar(1.1025, 1.104, 1.096, 1.097)

	sig := e.Evaluate("EURUSD", w)
	if !sig.Valid {
		t.Fatalf("expected valid signal, diagnostic: %s", sig.Diagnostic)
	}
	if sig.Direction != types.DirectionPut {
		t.Errorf("expected put, got %s", sig.Direction)
	}
}

func TestEngulfingRejectsNonEngulfingBar(t *testing.T) {
	e := NewEngulfing(10, 0.3)
	sig := e.Evaluate("EURUSD", flatWindow(10))
	if sig.Valid {
		t.Error("flat window must not produce a signal")
	}
	if sig.Diagnostic != "no engulfing" {
		t.Errorf("unexpected diagnostic %q", sig.Diagnostic)
	}
}

func TestEngulfingRejectsWeakBody(t *testing.T) {
	e := NewEngulfing(10, 0.3)
	w := flatWindow(10)
	w[8] = bar(1.102, 1.103, 1.098, 1.099)
	// Range engulfs but the body is a sliver of it.
	w[9] = bar(1.0990, 1.106, 1.096, 1.0995)

	sig := e.Evaluate("EURUSD", w)
	if sig.Valid {
		t.Error("weak body must be rejected")
	}
}

func TestEngulfingRejectsSameColor(t *testing.T) {
	e := NewEngulfing(10, 0.3)
	w := flatWindow(10)
	// Both green: engulfing needs a color flip.
	w[8] = bar(1.099, 1.103, 1.098, 1.102)
	w[9] = bar(1.097, 1.105, 1.0965, 1.104)

	sig := e.Evaluate("EURUSD", w)
	if sig.Valid {
		t.Error("same-color bars must not signal")
	}
}

func TestTrendDirection(t *testing.T) {
	rising := make([]types.Candle, 12)
	price := 1.0
	for i := range rising {
		rising[i] = bar(price, price+0.01, price-0.01, price+0.008)
		price += 0.01
	}
	if got := TrendDirection(rising); got != TrendBullish {
		t.Errorf("expected bullish, got %s", got)
	}

	falling := make([]types.Candle, 12)
	price = 2.0
	for i := range falling {
		falling[i] = bar(price, price+0.01, price-0.01, price-0.008)
		price -= 0.01
	}
	if got := TrendDirection(falling); got != TrendBearish {
		t.Errorf("expected bearish, got %s", got)
	}

	if got := TrendDirection(flatWindow(12)); got != TrendSideways {
		t.Errorf("expected sideways, got %s", got)
	}

	if got := TrendDirection(flatWindow(2)); got != TrendSideways {
		t.Errorf("two candles must read sideways, got %s", got)
	}
}
