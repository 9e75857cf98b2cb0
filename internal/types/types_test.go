package types

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCandleNormalizeClampsRange(t *testing.T) {
	c := Candle{Open: 1.10, High: 1.05, Low: 1.20, Close: 1.12, Volume: 10}
	// high < low: unusable
	if c.Normalize() {
		t.Fatal("expected inverted candle to be rejected")
	}

	c = Candle{Open: 1.10, High: 1.11, Low: 1.09, Close: 1.15, Volume: 10}
	if !c.Normalize() {
		t.Fatal("expected candle to be accepted")
	}
	if c.High != 1.15 {
		t.Errorf("expected high clamped to close 1.15, got %v", c.High)
	}

	c = Candle{Open: 1.10, High: 1.12, Low: 1.11, Close: 1.12, Volume: 10}
	if !c.Normalize() {
		t.Fatal("expected candle to be accepted")
	}
	if c.Low != 1.10 {
		t.Errorf("expected low clamped to open 1.10, got %v", c.Low)
	}
}

func TestCandleNormalizeRejectsZeroPrices(t *testing.T) {
	cases := []Candle{
		{Open: 0, High: 0, Low: 0, Close: 0, Volume: 0},
		{Open: 1.1, High: 1.2, Low: 1.0, Close: 0, Volume: 1},
		{Open: -1, High: 1.2, Low: 1.0, Close: 1.1, Volume: 1},
		{Open: 1.1, High: 1.2, Low: 1.0, Close: 1.1, Volume: -1},
		{Open: 1.1, High: 1.2, Low: 1.0, Close: 1.1, Volume: 0},
	}
	for i, c := range cases {
		if c.Normalize() {
			t.Errorf("case %d: expected rejection for %+v", i, c)
		}
	}
}

func TestCandleClosedBy(t *testing.T) {
	c := Candle{Time: 1000, Duration: 60}
	if c.ClosedBy(1059) {
		t.Error("candle should still be open one second before close")
	}
	if !c.ClosedBy(1060) {
		t.Error("candle should be closed exactly at its boundary")
	}
}

func TestOpenTradeOverdue(t *testing.T) {
	expiry := time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC)
	tr := OpenTrade{
		TradeIntent: TradeIntent{Stake: decimal.NewFromInt(1)},
		ExpiryTime:  expiry,
		Resolution:  ResolutionOpen,
	}
	grace := 30 * time.Second

	if tr.Overdue(expiry.Add(10*time.Second), grace) {
		t.Error("trade inside grace should not be overdue")
	}
	if !tr.Overdue(expiry.Add(31*time.Second), grace) {
		t.Error("trade past expiry+grace should be overdue")
	}

	tr.Resolution = ResolutionWin
	if tr.Overdue(expiry.Add(time.Hour), grace) {
		t.Error("resolved trade is never overdue")
	}
}
