package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"candle-trading-bot/internal/interfaces"
	"candle-trading-bot/internal/logger"
	"candle-trading-bot/internal/metrics"
	"candle-trading-bot/internal/types"
)

// resolveBuffer is how long past expiry the monitor waits before its first
// outcome poll, giving the venue time to settle.
const resolveBuffer = 5 * time.Second

// analyze runs at candle close: evaluate every candidate instrument and
// submit trades for valid signals, bounded by the concurrency cap. Candidates
// come from the half-time shortlist for preconditioned strategies and from
// the prefetch cache for the rest.
func (e *Engine) analyze(ctx context.Context, closeAt time.Time) {
	if !e.conn.ok() {
		logger.Warn(ctx, "Disconnected, skipping analysis")
		return
	}

	ctx, span := logger.StartSpan(ctx, "analyze")
	defer span.End()

	candidates := e.candidates()
	if len(candidates) == 0 {
		logger.Info(ctx, "No candidates to analyze this cycle")
		return
	}

	phaseCtx, cancel := context.WithTimeout(ctx, time.Duration(e.cfg.Timeouts.AnalyzeSeconds)*time.Second)
	defer cancel()

	start := e.now()
	var wg sync.WaitGroup
	for _, instrument := range candidates {
		wg.Add(1)
		go func(instrument string) {
			defer wg.Done()
			e.analyzeInstrument(phaseCtx, instrument, closeAt)
		}(instrument)
	}
	wg.Wait()

	logger.Info(ctx, "Analysis complete",
		"candidates", len(candidates),
		"duration", e.now().Sub(start).String(),
	)
}

// candidates merges the shortlist with the cached instruments needed by
// strategies that have no precondition, skipping busy and quarantined ones.
func (e *Engine) candidates() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(id string) {
		if _, dup := seen[id]; dup || e.skippable(id) {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	hasCacheStrategy := false
	hasPreconditioned := false
	for _, ev := range e.evaluators {
		if _, ok := ev.(interfaces.Preconditioner); ok {
			hasPreconditioned = true
		} else {
			hasCacheStrategy = true
		}
	}

	if hasPreconditioned {
		e.shortMu.Lock()
		for id := range e.shortlist {
			add(id)
		}
		e.shortMu.Unlock()
	}
	if hasCacheStrategy {
		for _, id := range e.cache.Instruments() {
			add(id)
		}
	}
	return out
}

// analyzeInstrument evaluates all strategies for one instrument and submits
// at most one trade. Preconditioned strategies get a fresh window so the
// just-closed candle is included; the rest reuse the prefetch cache.
func (e *Engine) analyzeInstrument(ctx context.Context, instrument string, closeAt time.Time) {
	for _, ev := range e.evaluators {
		var window []types.Candle
		if _, isPre := ev.(interfaces.Preconditioner); isPre {
			if _, ok := e.shortlisted(instrument); !ok {
				continue
			}
			w, err := e.fetchWindow(ctx, instrument)
			if err != nil {
				logger.Warn(ctx, "Final candle fetch failed", "instrument", instrument, "error", err)
				continue
			}
			window = w
		} else {
			w, ok := e.cache.Window(instrument)
			if !ok {
				continue
			}
			window = w
		}

		// Hard lookahead guard: a window whose last candle has not closed
		// must never reach an evaluator.
		if len(window) == 0 || !window[len(window)-1].ClosedBy(closeAt.Unix()) {
			logger.Warn(ctx, "Window still open, skipping evaluation", "instrument", instrument, "strategy", ev.Name())
			continue
		}

		sig := ev.Evaluate(instrument, window)
		metrics.ObserveSignal(sig.Strategy, sig.Valid)
		if !sig.Valid {
			logger.Debug(ctx, "No signal", "instrument", instrument, "strategy", sig.Strategy, "diagnostic", sig.Diagnostic)
			continue
		}

		logger.Info(ctx, "Signal generated",
			"instrument", instrument,
			"strategy", sig.Strategy,
			"direction", string(sig.Direction),
			"diagnostic", sig.Diagnostic,
		)
		if e.submit(ctx, sig) {
			return
		}
	}
}

// submit attempts to place one trade for a valid signal. The concurrency
// slot is acquired before submission and stays held until the trade reaches
// a terminal resolution; a submission that fails outright releases it
// immediately. Returns true only when the trade was ledgered.
func (e *Engine) submit(ctx context.Context, sig types.Signal) bool {
	if ok, reason := e.risk.allows(); !ok {
		logger.Warn(ctx, "Trade skipped", "instrument", sig.Instrument, "reason", reason)
		metrics.ObserveSkip("risk_cap")
		return false
	}
	if !e.conn.ok() {
		logger.Warn(ctx, "Trade skipped", "instrument", sig.Instrument, "reason", "disconnected")
		metrics.ObserveSkip("disconnected")
		return false
	}

	// Block until a slot frees or the analysis phase ends; an abandoned
	// attempt is a skip, never a retry next cycle.
	select {
	case e.slots <- struct{}{}:
	case <-ctx.Done():
		logger.Warn(ctx, "Trade skipped", "instrument", sig.Instrument, "reason", "no available concurrency slot")
		metrics.ObserveSkip("no_slot")
		return false
	}

	// Re-check under the slot: another goroutine may have traded this
	// instrument while we waited.
	if e.led.ActiveOn(sig.Instrument) {
		e.releaseSlot()
		return false
	}

	intent := types.TradeIntent{
		Instrument: sig.Instrument,
		Direction:  sig.Direction,
		Stake:      e.currentStake(),
		Strategy:   sig.Strategy,
		SubmitTime: e.now(),
		Duration:   e.cfg.Timeframe(),
	}

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(e.cfg.Timeouts.SubmitSeconds)*time.Second)
	externalID, err := e.brk.SubmitTrade(callCtx, intent)
	cancel()
	if err != nil {
		e.releaseSlot()
		if errors.Is(err, interfaces.ErrInstrumentClosed) {
			e.quarantine(sig.Instrument)
		}
		logger.Warn(ctx, "Trade submission rejected",
			"instrument", sig.Instrument,
			"direction", string(sig.Direction),
			"error", err,
		)
		metrics.ObserveSkip("rejected")
		return false
	}

	trade := types.OpenTrade{
		ID:          uuid.NewString(),
		ExternalID:  externalID,
		TradeIntent: intent,
		ExpiryTime:  intent.SubmitTime.Add(intent.Duration),
	}
	if err := e.led.Append(trade); err != nil {
		logger.ErrorWithErr(ctx, "Failed to ledger trade", err, "trade_id", trade.ID)
	}
	metrics.SetOpenTrades(e.led.OpenCount())

	logger.Info(ctx, "Trade submitted",
		"instrument", trade.Instrument,
		"direction", string(trade.Direction),
		"stake", trade.Stake.String(),
		"strategy", trade.Strategy,
		"trade_id", trade.ID,
		"external_id", trade.ExternalID,
	)

	e.wg.Add(1)
	go e.monitorTrade(e.monCtx, trade)
	return true
}

// monitorTrade waits out the trade's duration and polls for the outcome
// once. A poll that times out or comes back pending leaves the trade open
// for the sweeper; it is never guessed.
func (e *Engine) monitorTrade(ctx context.Context, trade types.OpenTrade) {
	defer e.wg.Done()

	wait := trade.ExpiryTime.Sub(e.now()) + resolveBuffer
	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}

	out, err := e.pollOutcome(ctx, trade.ExternalID)
	if err != nil {
		logger.Warn(ctx, "Outcome poll inconclusive - sweeper will retry",
			"trade_id", trade.ID, "error", err)
		return
	}
	e.resolveTrade(ctx, trade.ID, out)
}

func (e *Engine) pollOutcome(ctx context.Context, externalID string) (types.TradeOutcome, error) {
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(e.cfg.Timeouts.PollSeconds)*time.Second)
	defer cancel()
	return e.brk.PollOutcome(callCtx, externalID)
}

// resolveTrade applies a confirmed outcome. Resolution is exactly-once at
// the ledger, so racing the sweeper is harmless.
func (e *Engine) resolveTrade(ctx context.Context, tradeID string, out types.TradeOutcome) {
	res := types.ResolutionLoss
	if out.Win {
		res = types.ResolutionWin
	}
	t, ok := e.led.Resolve(tradeID, res, out.PnL)
	if !ok {
		return
	}
	e.releaseSlot()
	e.risk.record(out.PnL)
	metrics.ObserveTrade(string(res))
	metrics.SetOpenTrades(e.led.OpenCount())
	metrics.SetBalance(e.led.Balance().InexactFloat64())

	logger.Info(ctx, "Trade resolved",
		"trade_id", t.ID,
		"instrument", t.Instrument,
		"result", string(res),
		"pnl", out.PnL.String(),
		"balance", e.led.Balance().String(),
	)
}

// releaseSlot frees one concurrency slot. Non-blocking so a double release
// can never wedge a caller.
func (e *Engine) releaseSlot() {
	select {
	case <-e.slots:
	default:
	}
}
