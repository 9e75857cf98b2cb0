package engine

import (
	"context"
	"testing"
	"time"

	"candle-trading-bot/internal/interfaces"
	"candle-trading-bot/internal/types"
)

func TestPrefilterShortlistsExtremes(t *testing.T) {
	pre := &stubPreconditioner{
		stubEvaluator: stubEvaluator{name: "breakout"},
		lows:          map[string]bool{"EURUSD_otc": true},
		highs:         map[string]bool{"GBPUSD_otc": true},
	}
	e := newTestEngine(t, newFakeBroker(), []interfaces.Evaluator{pre})
	e.cache.Put("EURUSD_otc", closedWindow("EURUSD_otc", 12, t0))
	e.cache.Put("GBPUSD_otc", closedWindow("GBPUSD_otc", 12, t0))
	e.cache.Put("AUDCAD_otc", closedWindow("AUDCAD_otc", 12, t0))

	e.prefilter(context.Background())

	ex, ok := e.shortlisted("EURUSD_otc")
	if !ok || !ex.low || ex.high {
		t.Fatalf("EURUSD_otc shortlist = %+v ok=%v, want low extreme", ex, ok)
	}
	ex, ok = e.shortlisted("GBPUSD_otc")
	if !ok || ex.low || !ex.high {
		t.Fatalf("GBPUSD_otc shortlist = %+v ok=%v, want high extreme", ex, ok)
	}
	if _, ok := e.shortlisted("AUDCAD_otc"); ok {
		t.Fatal("instrument without extremes must not be shortlisted")
	}
}

func TestPrefilterReplacesPreviousShortlist(t *testing.T) {
	pre := &stubPreconditioner{
		stubEvaluator: stubEvaluator{name: "breakout"},
		lows:          map[string]bool{},
	}
	e := newTestEngine(t, newFakeBroker(), []interfaces.Evaluator{pre})
	e.shortlist["EURUSD_otc"] = extremes{low: true}
	e.cache.Put("EURUSD_otc", closedWindow("EURUSD_otc", 12, t0))

	e.prefilter(context.Background())
	if _, ok := e.shortlisted("EURUSD_otc"); ok {
		t.Fatal("stale shortlist entry survived a cycle without extremes")
	}
}

func TestPrefilterSkipsBusyInstrument(t *testing.T) {
	pre := &stubPreconditioner{
		stubEvaluator: stubEvaluator{name: "breakout"},
		lows:          map[string]bool{"EURUSD_otc": true},
	}
	e := newTestEngine(t, newFakeBroker(), []interfaces.Evaluator{pre})
	e.cache.Put("EURUSD_otc", closedWindow("EURUSD_otc", 12, t0))
	e.led.Append(types.OpenTrade{
		ID: "t-1",
		TradeIntent: types.TradeIntent{
			Instrument: "EURUSD_otc",
			Direction:  types.DirectionCall,
		},
		ExpiryTime: t0.Add(time.Minute),
	})

	e.prefilter(context.Background())
	if _, ok := e.shortlisted("EURUSD_otc"); ok {
		t.Fatal("instrument with open trade must not be shortlisted")
	}
}

func TestPrefilterNoPreconditionersIsNoop(t *testing.T) {
	ev := &stubEvaluator{name: "engulfing"}
	e := newTestEngine(t, newFakeBroker(), []interfaces.Evaluator{ev})
	e.cache.Put("EURUSD_otc", closedWindow("EURUSD_otc", 12, t0))

	e.prefilter(context.Background())
	if _, ok := e.shortlisted("EURUSD_otc"); ok {
		t.Fatal("no preconditioners, nothing should be shortlisted")
	}
}
