package engine

import (
	"context"

	"candle-trading-bot/internal/interfaces"
	"candle-trading-bot/internal/logger"
	"candle-trading-bot/internal/metrics"
)

// prefilter runs at half-time: a pure scan over cache snapshots that
// shortlists instruments whose window shows a structural extreme in either
// direction. No network I/O happens here; the shortlist bounds the work done
// in the time-critical close phase.
func (e *Engine) prefilter(ctx context.Context) {
	preconditioners := make(map[string]interfaces.Preconditioner)
	for _, ev := range e.evaluators {
		if p, ok := ev.(interfaces.Preconditioner); ok {
			preconditioners[ev.Name()] = p
		}
	}
	if len(preconditioners) == 0 {
		return
	}

	shortlist := make(map[string]extremes)
	for _, instrument := range e.cache.Instruments() {
		if e.skippable(instrument) {
			continue
		}
		window, ok := e.cache.Window(instrument)
		if !ok {
			continue
		}
		for _, p := range preconditioners {
			low, high := p.Precondition(window)
			if low || high {
				prev := shortlist[instrument]
				shortlist[instrument] = extremes{low: prev.low || low, high: prev.high || high}
			}
		}
	}

	e.shortMu.Lock()
	e.shortlist = shortlist
	e.shortMu.Unlock()

	metrics.SetShortlistSize(len(shortlist))
	names := make([]string, 0, len(shortlist))
	for id := range shortlist {
		names = append(names, id)
	}
	logger.Info(ctx, "Prefilter complete", "shortlisted", len(names), "instruments", names)
}

// shortlisted returns the extremes recorded for an instrument this cycle.
func (e *Engine) shortlisted(instrument string) (extremes, bool) {
	e.shortMu.Lock()
	defer e.shortMu.Unlock()
	ex, ok := e.shortlist[instrument]
	return ex, ok
}
