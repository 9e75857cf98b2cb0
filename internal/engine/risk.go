package engine

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"candle-trading-bot/internal/store"
)

// riskManager enforces the daily profit/loss caps. Caps can be configured as
// fixed amounts or as a percentage of the balance seen at seed time; a zero
// cap disables that side.
type riskManager struct {
	mu        sync.Mutex
	capMode   string
	profitRaw float64
	lossRaw   float64
	profitCap decimal.Decimal
	lossCap   decimal.Decimal
	dayStart  time.Time
	dayPnL    decimal.Decimal
	now       func() time.Time
}

func newRiskManager(cfg *store.Config, now func() time.Time) *riskManager {
	if now == nil {
		now = time.Now
	}
	r := &riskManager{
		capMode:   cfg.Risk.CapMode,
		profitRaw: cfg.Risk.DailyProfitCap,
		lossRaw:   cfg.Risk.DailyLossCap,
		now:       now,
	}
	r.dayStart = midnightUTC(r.now())
	if r.capMode != "PERCENT" {
		r.profitCap = decimal.NewFromFloat(r.profitRaw)
		r.lossCap = decimal.NewFromFloat(r.lossRaw)
	}
	return r
}

// seed resolves percentage caps against the account balance. Called at
// startup and after reconnects, when a fresh balance is known.
func (r *riskManager) seed(balance decimal.Decimal) {
	if r.capMode != "PERCENT" {
		return
	}
	r.mu.Lock()
	pct := decimal.NewFromInt(100)
	r.profitCap = balance.Mul(decimal.NewFromFloat(r.profitRaw)).Div(pct)
	r.lossCap = balance.Mul(decimal.NewFromFloat(r.lossRaw)).Div(pct)
	r.mu.Unlock()
}

// record accumulates realized PnL into the daily total.
func (r *riskManager) record(pnl decimal.Decimal) {
	r.mu.Lock()
	r.rollover()
	r.dayPnL = r.dayPnL.Add(pnl)
	r.mu.Unlock()
}

// allows reports whether a new trade may be opened, with the blocking reason
// when not.
func (r *riskManager) allows() (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollover()

	if r.profitCap.IsPositive() && r.dayPnL.GreaterThanOrEqual(r.profitCap) {
		return false, "daily profit cap reached"
	}
	if r.lossCap.IsPositive() && r.dayPnL.Neg().GreaterThanOrEqual(r.lossCap) {
		return false, "daily loss cap reached"
	}
	return true, ""
}

// rollover resets the daily total when a new UTC day begins. Caller holds r.mu.
func (r *riskManager) rollover() {
	if day := midnightUTC(r.now()); day.After(r.dayStart) {
		r.dayStart = day
		r.dayPnL = decimal.Zero
	}
}

func midnightUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
