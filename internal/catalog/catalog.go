// Package catalog maintains the payout-filtered list of tradable instruments.
package catalog

import (
	"context"
	"sync"
	"time"

	"candle-trading-bot/internal/interfaces"
	"candle-trading-bot/internal/logger"
	"candle-trading-bot/internal/types"
)

type Catalog struct {
	mu          sync.RWMutex
	minPayout   float64
	instruments []types.Instrument
	lastRefresh time.Time
	now         func() time.Time
}

func New(minPayout float64) *Catalog {
	return &Catalog{minPayout: minPayout, now: time.Now}
}

// Refresh reloads the instrument list from the venue. A refresh that fails or
// comes back empty keeps the previous list; an empty catalog during a venue
// hiccup is worse than a slightly stale one.
func (c *Catalog) Refresh(ctx context.Context, brk interfaces.Broker) error {
	instruments, err := brk.ListInstruments(ctx, c.minPayout)
	if err != nil {
		logger.Warn(ctx, "Instrument refresh failed - keeping previous list", "error", err)
		return err
	}

	tradable := make([]types.Instrument, 0, len(instruments))
	for _, in := range instruments {
		if in.Open && in.PayoutRate >= c.minPayout {
			tradable = append(tradable, in)
		}
	}
	if len(tradable) == 0 {
		logger.Warn(ctx, "Instrument refresh returned no tradable instruments - keeping previous list")
		return nil
	}

	c.mu.Lock()
	c.instruments = tradable
	c.lastRefresh = c.now()
	c.mu.Unlock()

	logger.Info(ctx, "Tradable instruments refreshed", "count", len(tradable))
	return nil
}

// Tradable returns a copy of the current instrument list.
func (c *Catalog) Tradable() []types.Instrument {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.Instrument, len(c.instruments))
	copy(out, c.instruments)
	return out
}

func (c *Catalog) Empty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.instruments) == 0
}

// Stale reports whether the catalog is due for its periodic refresh.
func (c *Catalog) Stale(maxAge time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.instruments) == 0 || c.now().Sub(c.lastRefresh) > maxAge
}
