package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"candle-trading-bot/internal/logger"
	"candle-trading-bot/internal/types"
)

// minWindow is the smallest usable candle window; fetches returning fewer
// closed candles are discarded for the cycle.
const minWindow = 6

// priceBand is the plausible close range for instruments matching a currency
// substring. Prices outside the band indicate a corrupted feed for that
// instrument and drop it for the cycle.
type priceBand struct {
	substr   string
	min, max float64
}

var priceBands = []priceBand{
	{"JPY", 50, 200},
	{"NGN", 1000, 2000},
	{"BDT", 100, 150},
	{"TRY", 30, 50},
}

const (
	genericPriceMin = 0.1
	genericPriceMax = 10000
)

func plausiblePrice(instrument string, price float64) bool {
	for _, b := range priceBands {
		if strings.Contains(instrument, b.substr) {
			return price >= b.min && price <= b.max
		}
	}
	return price >= genericPriceMin && price <= genericPriceMax
}

// prefetch runs at cycle start: one fetch per open instrument, sequential
// with a small throttle because the venue penalizes bursts. A failing
// instrument is skipped for this cycle; it never aborts the batch.
func (e *Engine) prefetch(ctx context.Context) {
	// Last cycle's windows expire the moment a new cycle starts: an
	// instrument whose fetch fails or is skipped must not be prefiltered or
	// analyzed from old data.
	e.cache.Clear()

	if !e.conn.ok() {
		logger.Warn(ctx, "Disconnected, skipping prefetch")
		return
	}

	ctx, span := logger.StartSpan(ctx, "prefetch")
	defer span.End()

	start := e.now()
	fetched, skipped := 0, 0
	for _, in := range e.cat.Tradable() {
		if ctx.Err() != nil {
			return
		}
		if e.skippable(in.ID) {
			continue
		}

		window, err := e.fetchWindow(ctx, in.ID)
		if err != nil {
			logger.Warn(ctx, "Candle fetch failed", "instrument", in.ID, "error", err)
			skipped++
		} else {
			e.cache.Put(in.ID, window)
			fetched++
		}

		// Throttle between successive instrument fetches.
		select {
		case <-time.After(e.cfg.FetchThrottle()):
		case <-ctx.Done():
			return
		}
	}

	logger.Info(ctx, "Prefetch complete",
		"fetched", fetched,
		"skipped", skipped,
		"duration", e.now().Sub(start).String(),
	)
}

// fetchWindow fetches, validates, and trims one instrument's candle window.
// Only candles that have fully closed by now are kept; the venue's forming
// candle must never reach an evaluator.
func (e *Engine) fetchWindow(ctx context.Context, instrument string) ([]types.Candle, error) {
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(e.cfg.Timeouts.FetchSeconds)*time.Second)
	defer cancel()

	raw, err := e.brk.FetchCandles(callCtx, instrument, e.cfg.WindowSize, e.cfg.TimeframeSeconds)
	if err != nil {
		return nil, err
	}

	nowUnix := e.now().Unix()
	window := make([]types.Candle, 0, len(raw))
	for _, c := range raw {
		c.Instrument = instrument
		if !c.Normalize() {
			return nil, fmt.Errorf("malformed candle at %d", c.Time)
		}
		if !plausiblePrice(instrument, c.Close) {
			return nil, fmt.Errorf("implausible price %.5f", c.Close)
		}
		if !c.ClosedBy(nowUnix) {
			continue
		}
		window = append(window, c)
	}
	if len(window) < minWindow {
		return nil, fmt.Errorf("short window: %d closed candles", len(window))
	}
	return window, nil
}
