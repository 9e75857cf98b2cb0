package paper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"candle-trading-bot/internal/interfaces"
	"candle-trading-bot/internal/types"
)

func TestFetchCandlesAreClosedAndWellFormed(t *testing.T) {
	b := New(1000, nil, 1)
	candles, err := b.FetchCandles(context.Background(), "USDJPY_otc", 30, 60)
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != 30 {
		t.Fatalf("candles = %d, want 30", len(candles))
	}

	now := time.Now().Unix()
	for i, c := range candles {
		if !c.ClosedBy(now) {
			t.Fatalf("candle %d not closed", i)
		}
		if !c.Normalize() {
			t.Fatalf("candle %d malformed: %+v", i, c)
		}
		if c.Close < 50 || c.Close > 200 {
			t.Fatalf("candle %d outside JPY band: %.4f", i, c.Close)
		}
		if i > 0 && c.Time != candles[i-1].Time+60 {
			t.Fatalf("candle %d not contiguous", i)
		}
	}
}

func TestFetchCandlesUnknownInstrument(t *testing.T) {
	b := New(1000, []string{"EURUSD_otc"}, 1)
	if _, err := b.FetchCandles(context.Background(), "XAUUSD", 10, 60); err == nil {
		t.Fatal("unknown instrument must error")
	}
}

func TestTradeLifecycle(t *testing.T) {
	b := New(1000, []string{"EURUSD_otc"}, 1)
	b.now = func() time.Time { return time.Unix(1000, 0) }

	intent := types.TradeIntent{
		Instrument: "EURUSD_otc",
		Direction:  types.DirectionCall,
		Stake:      decimal.NewFromInt(10),
		SubmitTime: time.Unix(1000, 0),
		Duration:   time.Minute,
	}
	id, err := b.SubmitTrade(context.Background(), intent)
	if err != nil {
		t.Fatal(err)
	}
	if bal, _ := b.Balance(context.Background()); !bal.Equal(decimal.NewFromInt(990)) {
		t.Fatalf("balance = %s after submit, want 990", bal)
	}

	// Before expiry the outcome is pending.
	if _, err := b.PollOutcome(context.Background(), id); !errors.Is(err, interfaces.ErrOutcomePending) {
		t.Fatalf("err = %v, want ErrOutcomePending", err)
	}

	b.now = func() time.Time { return time.Unix(1061, 0) }
	out, err := b.PollOutcome(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if out.Win && !out.PnL.IsPositive() {
		t.Fatalf("winning outcome with PnL %s", out.PnL)
	}
	if !out.Win && !out.PnL.Equal(decimal.NewFromInt(-10)) {
		t.Fatalf("losing outcome with PnL %s, want -10", out.PnL)
	}

	// Settlement is applied once; repeated polls report the same outcome.
	again, err := b.PollOutcome(context.Background(), id)
	if err != nil || again.Win != out.Win {
		t.Fatalf("repeat poll = %+v err=%v, want stable outcome", again, err)
	}
	bal1, _ := b.Balance(context.Background())
	b.PollOutcome(context.Background(), id)
	bal2, _ := b.Balance(context.Background())
	if !bal1.Equal(bal2) {
		t.Fatalf("balance moved on repeat poll: %s -> %s", bal1, bal2)
	}
}

func TestSubmitRejectsOversizedStake(t *testing.T) {
	b := New(5, []string{"EURUSD_otc"}, 1)
	intent := types.TradeIntent{
		Instrument: "EURUSD_otc",
		Stake:      decimal.NewFromInt(10),
		SubmitTime: time.Now(),
		Duration:   time.Minute,
	}
	if _, err := b.SubmitTrade(context.Background(), intent); err == nil {
		t.Fatal("stake above balance must be rejected")
	}
}

func TestSubmitUnknownInstrumentIsClosed(t *testing.T) {
	b := New(1000, []string{"EURUSD_otc"}, 1)
	intent := types.TradeIntent{Instrument: "XAUUSD", Stake: decimal.NewFromInt(1)}
	if _, err := b.SubmitTrade(context.Background(), intent); !errors.Is(err, interfaces.ErrInstrumentClosed) {
		t.Fatalf("err = %v, want ErrInstrumentClosed", err)
	}
}

func TestListInstrumentsFiltersByPayout(t *testing.T) {
	b := New(1000, []string{"EURUSD_otc", "GBPUSD_otc"}, 1)
	b.payouts["EURUSD_otc"] = 90
	b.payouts["GBPUSD_otc"] = 70

	got, err := b.ListInstruments(context.Background(), 84)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "EURUSD_otc" {
		t.Fatalf("instruments = %+v, want only EURUSD_otc", got)
	}
}
