package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"candle-trading-bot/internal/logger"
	"candle-trading-bot/internal/metrics"
	"candle-trading-bot/internal/types"
)

// sweepLoop is the safety net behind the per-trade monitors: it retries
// outcome polls for expired trades and force-resolves anything stuck past
// the grace period so its concurrency slot cannot leak.
func (e *Engine) sweepLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(time.Duration(e.cfg.Intervals.SweeperSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.sweepOnce(ctx)
		}
	}
}

func (e *Engine) sweepOnce(ctx context.Context) {
	now := e.now()

	overdue := make(map[string]struct{})
	for _, t := range e.led.Overdue(now, e.cfg.Grace()) {
		overdue[t.ID] = struct{}{}
		e.forceResolve(ctx, t)
	}

	if !e.conn.ok() {
		return
	}
	for _, t := range e.led.Expired(now) {
		if _, done := overdue[t.ID]; done {
			continue
		}
		out, err := e.pollOutcome(ctx, t.ExternalID)
		if err != nil {
			logger.Debug(ctx, "Sweeper poll still pending", "trade_id", t.ID, "error", err)
			continue
		}
		e.resolveTrade(ctx, t.ID, out)
	}
}

// forceResolve closes a trade as UNKNOWN after the grace period. The slot
// comes back immediately; the real outcome, if the venue ever reports one,
// has to be reconciled against the ledger by hand.
func (e *Engine) forceResolve(ctx context.Context, t types.OpenTrade) {
	if _, ok := e.led.Resolve(t.ID, types.ResolutionUnknown, decimal.Zero); !ok {
		return
	}
	e.releaseSlot()
	metrics.ObserveTrade(string(types.ResolutionUnknown))
	metrics.SetOpenTrades(e.led.OpenCount())

	logger.Warn(ctx, "Trade force-resolved as unknown, manual reconciliation required",
		"trade_id", t.ID,
		"instrument", t.Instrument,
		"external_id", t.ExternalID,
		"expired_at", t.ExpiryTime.UTC().Format(time.RFC3339),
	)
}
