// Package ledger is the append-only record of every submitted trade and its
// resolution. The open-trade set lives in memory; every state change also
// appends a JSON line to the ledger file so the history survives restarts.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"candle-trading-bot/internal/types"
)

// Record is one JSON line in the ledger file.
type Record struct {
	Time       string          `json:"time"`
	ID         string          `json:"id"`
	ExternalID string          `json:"external_id"`
	Instrument string          `json:"instrument"`
	Direction  types.Direction `json:"direction"`
	Strategy   string          `json:"strategy"`
	Stake      decimal.Decimal `json:"stake"`
	Duration   int             `json:"duration"`
	Status     string          `json:"status"`
	PnL        decimal.Decimal `json:"pnl"`
	Balance    decimal.Decimal `json:"balance"`
}

type Ledger struct {
	mu       sync.Mutex
	path     string
	open     map[string]*types.OpenTrade
	resolved []types.OpenTrade
	balance  decimal.Decimal
}

func Open(path string, startingBalance decimal.Decimal) *Ledger {
	return &Ledger{
		path:    path,
		open:    make(map[string]*types.OpenTrade),
		balance: startingBalance,
	}
}

func (l *Ledger) Balance() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

func (l *Ledger) SetBalance(b decimal.Decimal) {
	l.mu.Lock()
	l.balance = b
	l.mu.Unlock()
}

// Append records a newly submitted trade. The trade enters the ledger in the
// open state; this is the only way a trade gets in.
func (l *Ledger) Append(t types.OpenTrade) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.open[t.ID]; exists {
		return fmt.Errorf("trade %s already ledgered", t.ID)
	}
	t.Resolution = types.ResolutionOpen
	cp := t
	l.open[t.ID] = &cp

	return l.writeLine(&cp)
}

// Resolve transitions an open trade to a terminal state, adjusts the running
// balance and appends the resolution line. It reports false when the trade is
// unknown or already resolved, which makes resolution exactly-once for
// callers racing the sweeper.
func (l *Ledger) Resolve(id string, res types.Resolution, pnl decimal.Decimal) (types.OpenTrade, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.open[id]
	if !ok || t.Resolution != types.ResolutionOpen {
		return types.OpenTrade{}, false
	}
	t.Resolution = res
	t.PnL = pnl
	l.balance = l.balance.Add(pnl)

	delete(l.open, id)
	l.resolved = append(l.resolved, *t)

	if err := l.writeLine(t); err != nil {
		// The in-memory state is authoritative for slot accounting; a failed
		// file write is logged by the caller, not rolled back.
		return *t, true
	}
	return *t, true
}

// OpenTrades returns snapshot copies of every unresolved trade.
func (l *Ledger) OpenTrades() []types.OpenTrade {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]types.OpenTrade, 0, len(l.open))
	for _, t := range l.open {
		out = append(out, *t)
	}
	return out
}

func (l *Ledger) OpenCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.open)
}

// ActiveOn reports whether an unresolved trade exists for the instrument.
func (l *Ledger) ActiveOn(instrument string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.open {
		if t.Instrument == instrument {
			return true
		}
	}
	return false
}

// Expired returns open trades whose nominal expiry has passed, candidates for
// an outcome poll.
func (l *Ledger) Expired(now time.Time) []types.OpenTrade {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []types.OpenTrade
	for _, t := range l.open {
		if t.Expired(now) {
			out = append(out, *t)
		}
	}
	return out
}

// Overdue returns open trades past expiry plus grace, candidates for forced
// resolution.
func (l *Ledger) Overdue(now time.Time, grace time.Duration) []types.OpenTrade {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []types.OpenTrade
	for _, t := range l.open {
		if t.Overdue(now, grace) {
			out = append(out, *t)
		}
	}
	return out
}

// Resolved returns a snapshot of the resolved history, oldest first.
func (l *Ledger) Resolved() []types.OpenTrade {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]types.OpenTrade, len(l.resolved))
	copy(out, l.resolved)
	return out
}

// writeLine appends one record to the ledger file. Caller holds l.mu.
func (l *Ledger) writeLine(t *types.OpenTrade) error {
	if l.path == "" {
		return nil
	}
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	rec := Record{
		Time:       time.Now().UTC().Format(time.RFC3339),
		ID:         t.ID,
		ExternalID: t.ExternalID,
		Instrument: t.Instrument,
		Direction:  t.Direction,
		Strategy:   t.Strategy,
		Stake:      t.Stake,
		Duration:   int(t.Duration / time.Second),
		Status:     string(t.Resolution),
		PnL:        t.PnL,
		Balance:    l.balance,
	}
	b, _ := json.Marshal(rec)
	_, err = fmt.Fprintln(f, string(b))
	return err
}
