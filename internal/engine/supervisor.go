package engine

import (
	"context"
	"time"

	"candle-trading-bot/internal/logger"
)

// superviseLoop verifies broker liveness on a fixed interval and drives
// reconnection when it breaks. The cycle loop keeps running regardless; it
// just skips its phases while the link is down.
func (e *Engine) superviseLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(time.Duration(e.cfg.Intervals.SupervisorSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.checkLiveness(ctx)
		}
	}
}

// checkLiveness probes the broker with a cheap balance query. A failed probe
// marks the connection down and starts a reconnect attempt.
func (e *Engine) checkLiveness(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(e.cfg.Timeouts.LivenessSeconds)*time.Second)
	_, err := e.brk.Balance(callCtx)
	cancel()
	if err == nil {
		if !e.conn.ok() {
			// The link recovered on its own between probes.
			e.afterReconnect(ctx)
		}
		return
	}

	logger.Warn(ctx, "Liveness check failed", "error", err)
	e.conn.set(false, e.now())
	e.reconnect(ctx)
}

// reconnect re-establishes the broker session with bounded backoff. It is
// idempotent: if another path already restored the link it does nothing.
func (e *Engine) reconnect(ctx context.Context) {
	if e.conn.ok() {
		return
	}

	res := e.reconnectPolicy.execute(ctx, func(ctx context.Context) attemptResult {
		restored, err := e.brk.Reconnect(ctx)
		if err != nil {
			logger.Warn(ctx, "Reconnect attempt failed", "error", err)
			return attemptRetryable
		}
		if !restored {
			return attemptRetryable
		}
		return attemptOK
	})
	if res != attemptOK {
		logger.Error(ctx, "Reconnect exhausted, will retry next supervisor tick")
		return
	}

	e.afterReconnect(ctx)
}

// afterReconnect marks the link healthy and discards state that may have
// gone stale while it was down: the instrument catalog, every cached
// window, and the stake sizing.
func (e *Engine) afterReconnect(ctx context.Context) {
	e.conn.set(true, e.now())
	logger.Info(ctx, "Broker connection restored")

	if err := e.cat.Refresh(ctx, e.brk); err != nil {
		logger.Warn(ctx, "Catalog refresh after reconnect failed", "error", err)
	}
	e.cache.Clear()
	e.refreshStake(ctx)
}
