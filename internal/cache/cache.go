// Package cache holds per-instrument rolling candle windows. The prefetcher
// is the sole writer within a cycle; prefilter and analyzer read immutable
// snapshots so the next cycle's writes can never race a reader.
package cache

import (
	"sync"

	"candle-trading-bot/internal/types"
)

type Cache struct {
	mu      sync.RWMutex
	windows map[string][]types.Candle
	maxSize int
}

func New(maxSize int) *Cache {
	return &Cache{
		windows: make(map[string][]types.Candle),
		maxSize: maxSize,
	}
}

// Put replaces the window for an instrument with a fresh fetch, keeping only
// the newest maxSize candles. The slice is copied on the way in so the caller
// cannot mutate cached data afterwards.
func (c *Cache) Put(instrument string, candles []types.Candle) {
	if len(candles) > c.maxSize {
		candles = candles[len(candles)-c.maxSize:]
	}
	window := make([]types.Candle, len(candles))
	copy(window, candles)

	c.mu.Lock()
	c.windows[instrument] = window
	c.mu.Unlock()
}

// Window returns a snapshot copy of the instrument's window, oldest first.
func (c *Cache) Window(instrument string) ([]types.Candle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	window, ok := c.windows[instrument]
	if !ok || len(window) == 0 {
		return nil, false
	}
	out := make([]types.Candle, len(window))
	copy(out, window)
	return out, true
}

// Instruments lists every instrument currently holding a window.
func (c *Cache) Instruments() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.windows))
	for id := range c.windows {
		out = append(out, id)
	}
	return out
}

// Len reports the window length for an instrument, 0 when absent.
func (c *Cache) Len(instrument string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.windows[instrument])
}

// Clear drops every window. Used after a reconnect, when data fetched during
// the disconnect window cannot be trusted.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.windows = make(map[string][]types.Candle)
	c.mu.Unlock()
}
