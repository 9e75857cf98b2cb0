package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"candle-trading-bot/internal/interfaces"
	"candle-trading-bot/internal/ledger"
	"candle-trading-bot/internal/store"
	"candle-trading-bot/internal/types"
)

// t0 is a fixed clock on a minute boundary; most tests pin the engine's
// clock here and build candle windows relative to it.
var t0 = time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

type fakeBroker struct {
	mu          sync.Mutex
	candles     map[string][]types.Candle
	fetchErr    map[string]error
	instruments []types.Instrument
	listErr     error
	balance     decimal.Decimal
	balanceErr  error
	submitErr   error
	submitted   []types.TradeIntent
	nextID      int
	outcomes    map[string]types.TradeOutcome
	reconnects  int
	reconnectOK bool
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		candles:     make(map[string][]types.Candle),
		fetchErr:    make(map[string]error),
		outcomes:    make(map[string]types.TradeOutcome),
		balance:     decimal.NewFromInt(1000),
		reconnectOK: true,
	}
}

func (f *fakeBroker) FetchCandles(ctx context.Context, instrument string, count, period int) ([]types.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fetchErr[instrument]; err != nil {
		return nil, err
	}
	w, ok := f.candles[instrument]
	if !ok {
		return nil, fmt.Errorf("no candles for %q", instrument)
	}
	out := make([]types.Candle, len(w))
	copy(out, w)
	return out, nil
}

func (f *fakeBroker) SubmitTrade(ctx context.Context, intent types.TradeIntent) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = append(f.submitted, intent)
	f.nextID++
	return fmt.Sprintf("ext-%d", f.nextID), nil
}

func (f *fakeBroker) PollOutcome(ctx context.Context, externalID string) (types.TradeOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out, ok := f.outcomes[externalID]
	if !ok {
		return types.TradeOutcome{}, interfaces.ErrOutcomePending
	}
	return out, nil
}

func (f *fakeBroker) Balance(ctx context.Context) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErr != nil {
		return decimal.Decimal{}, f.balanceErr
	}
	return f.balance, nil
}

func (f *fakeBroker) Reconnect(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
	return f.reconnectOK, nil
}

func (f *fakeBroker) ListInstruments(ctx context.Context, minPayout float64) ([]types.Instrument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]types.Instrument, len(f.instruments))
	copy(out, f.instruments)
	return out, nil
}

func (f *fakeBroker) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

// stubEvaluator returns canned signals per instrument and no precondition.
type stubEvaluator struct {
	name    string
	signals map[string]types.Signal
}

func (s *stubEvaluator) Name() string { return s.name }

func (s *stubEvaluator) Evaluate(instrument string, window []types.Candle) types.Signal {
	if sig, ok := s.signals[instrument]; ok {
		return sig
	}
	return types.Signal{Instrument: instrument, Strategy: s.name, Diagnostic: "no setup"}
}

// stubPreconditioner adds canned half-time extremes, keyed by the window's
// instrument.
type stubPreconditioner struct {
	stubEvaluator
	lows  map[string]bool
	highs map[string]bool
}

func (s *stubPreconditioner) Precondition(window []types.Candle) (bool, bool) {
	if len(window) == 0 {
		return false, false
	}
	id := window[0].Instrument
	return s.lows[id], s.highs[id]
}

func callSignal(instrument, strategy string) types.Signal {
	return types.Signal{
		Instrument: instrument,
		Direction:  types.DirectionCall,
		Valid:      true,
		Strategy:   strategy,
		Diagnostic: "breakout below prior low",
	}
}

func testConfig(t *testing.T) *store.Config {
	t.Helper()
	cfg := &store.Config{
		Mode:             "DRY_RUN",
		TimeframeSeconds: 60,
		WindowSize:       30,
		MaxConcurrent:    1,
		PayoutThreshold:  80,
		StopFile:         filepath.Join(t.TempDir(), "STOP"),
		GraceSeconds:     30,
	}
	cfg.Stake.Percent = 2
	cfg.Stake.Minimum = 1
	cfg.Strategies.Breakout.Enabled = true
	cfg.Intervals.SupervisorSeconds = 30
	cfg.Intervals.SweeperSeconds = 60
	cfg.Intervals.CatalogRefreshSeconds = 300
	cfg.Intervals.QuarantineResetSeconds = 120
	cfg.Timeouts.FetchSeconds = 2
	cfg.Timeouts.SubmitSeconds = 2
	cfg.Timeouts.PollSeconds = 2
	cfg.Timeouts.LivenessSeconds = 2
	cfg.Timeouts.AnalyzeSeconds = 1
	return cfg
}

// closedWindow builds n flat closed candles whose newest candle's close
// coincides with end.
func closedWindow(instrument string, n int, end time.Time) []types.Candle {
	out := make([]types.Candle, 0, n)
	for i := 0; i < n; i++ {
		ts := end.Unix() - int64(n-i)*60
		out = append(out, types.Candle{
			Instrument: instrument,
			Time:       ts,
			Duration:   60,
			Open:       1.10,
			High:       1.101,
			Low:        1.099,
			Close:      1.10,
			Volume:     100,
		})
	}
	return out
}

func newTestEngine(t *testing.T, brk *fakeBroker, evaluators []interfaces.Evaluator) *Engine {
	t.Helper()
	cfg := testConfig(t)
	led := ledger.Open("", decimal.NewFromInt(1000))
	e := New(cfg, brk, led, evaluators)
	e.now = func() time.Time { return t0 }
	e.reconnectPolicy = retryPolicy{maxAttempts: 3, initialBackoff: time.Millisecond, maxBackoff: 5 * time.Millisecond}
	return e
}

func TestRunFailsOnEmptyCatalog(t *testing.T) {
	brk := newFakeBroker() // no instruments listed
	e := newTestEngine(t, brk, nil)

	err := e.Run(context.Background())
	if !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("Run() = %v, want ErrEmptyCatalog", err)
	}
}

func TestStopFileRequestsStop(t *testing.T) {
	brk := newFakeBroker()
	e := newTestEngine(t, brk, nil)

	if e.stopRequested(context.Background()) {
		t.Fatal("stop requested before marker exists")
	}
	if err := os.WriteFile(e.cfg.StopFile, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if !e.stopRequested(context.Background()) {
		t.Fatal("stop marker file not honored")
	}
	// Latched: removing the file does not un-stop.
	os.Remove(e.cfg.StopFile)
	if !e.stopRequested(context.Background()) {
		t.Fatal("stop request did not latch")
	}
}

func TestQuarantineResetAfterInterval(t *testing.T) {
	brk := newFakeBroker()
	e := newTestEngine(t, brk, nil)

	e.quarantine("EURUSD_otc")
	if !e.isQuarantined("EURUSD_otc") {
		t.Fatal("instrument not quarantined")
	}

	e.now = func() time.Time { return t0.Add(121 * time.Second) }
	e.housekeeping(context.Background())
	if e.isQuarantined("EURUSD_otc") {
		t.Fatal("quarantine not cleared after reset interval")
	}
}

func TestRefreshStakePercentWithFloor(t *testing.T) {
	brk := newFakeBroker()
	e := newTestEngine(t, brk, nil)

	brk.balance = decimal.NewFromInt(500)
	e.refreshStake(context.Background())
	if got := e.currentStake(); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("stake = %s, want 10 (2%% of 500)", got)
	}

	brk.balance = decimal.NewFromInt(20)
	e.refreshStake(context.Background())
	if got := e.currentStake(); !got.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("stake = %s, want floor 1", got)
	}
}
