// Package engine implements the candle-synchronized trading pipeline: a
// repeating prefetch / prefilter / analyze cycle aligned to candle
// boundaries, with a connection supervisor and a trade-cleanup sweeper on
// independent timers.
package engine

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"candle-trading-bot/internal/cache"
	"candle-trading-bot/internal/catalog"
	"candle-trading-bot/internal/interfaces"
	"candle-trading-bot/internal/ledger"
	"candle-trading-bot/internal/logger"
	"candle-trading-bot/internal/metrics"
	"candle-trading-bot/internal/store"
)

// ErrEmptyCatalog is returned by Run when no tradable instrument can be
// loaded at startup. This is a fatal configuration condition; the scheduler
// never starts a cycle against an empty catalog.
var ErrEmptyCatalog = errors.New("instrument catalog empty")

type extremes struct {
	low, high bool
}

// connState is the process-wide connection status, written only by the
// supervisor and read by the prefetcher and executor.
type connState struct {
	mu           sync.RWMutex
	connected    bool
	lastVerified time.Time
}

func (c *connState) set(connected bool, at time.Time) {
	c.mu.Lock()
	c.connected = connected
	if connected {
		c.lastVerified = at
	}
	c.mu.Unlock()
	metrics.SetConnected(connected)
}

func (c *connState) ok() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

var _ interfaces.Engine = (*Engine)(nil)

type Engine struct {
	cfg   *store.Config
	brk   interfaces.Broker
	cache *cache.Cache
	cat   *catalog.Catalog
	led   *ledger.Ledger
	risk  *riskManager
	sched *scheduler

	evaluators []interfaces.Evaluator

	conn            connState
	reconnectPolicy retryPolicy
	slots           chan struct{}

	shortMu   sync.Mutex
	shortlist map[string]extremes

	quarMu        sync.Mutex
	quarantined   map[string]struct{}
	lastQuarReset time.Time

	stakeMu sync.Mutex
	stake   decimal.Decimal

	// monCtx outlives the analysis phase so trade monitors can wait out
	// their trade's duration; Run rebinds it to the supervisor context.
	monCtx context.Context

	now     func() time.Time
	stopped atomic.Bool
	running atomic.Bool
	cycles  atomic.Int64

	wg sync.WaitGroup
}

// New assembles an engine from its collaborators. Evaluators implementing
// interfaces.Preconditioner participate in the half-time prefilter; the rest
// are analyzed from the prefetch-phase cache.
func New(cfg *store.Config, brk interfaces.Broker, led *ledger.Ledger, evaluators []interfaces.Evaluator) *Engine {
	e := &Engine{
		cfg:         cfg,
		brk:         brk,
		cache:       cache.New(cfg.WindowSize),
		cat:         catalog.New(cfg.PayoutThreshold),
		led:         led,
		evaluators:  evaluators,
		slots:       make(chan struct{}, cfg.MaxConcurrent),
		shortlist:   make(map[string]extremes),
		quarantined: make(map[string]struct{}),
		stake:       decimal.NewFromFloat(cfg.Stake.Minimum),
		monCtx:      context.Background(),
		now:         time.Now,
	}
	e.reconnectPolicy = retryPolicy{
		maxAttempts:    5,
		initialBackoff: 2 * time.Second,
		maxBackoff:     30 * time.Second,
	}
	e.sched = newScheduler(cfg.Timeframe(), func() time.Time { return e.now() })
	e.risk = newRiskManager(cfg, func() time.Time { return e.now() })
	e.conn.connected = true
	return e
}

// Run drives the candle cycle until Stop, ctx cancellation, or the stop
// marker file. It blocks; callers run it in a goroutine when they need to.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.startup(ctx); err != nil {
		return err
	}

	e.running.Store(true)
	defer e.running.Store(false)

	supCtx, supCancel := context.WithCancel(ctx)
	defer supCancel()
	e.monCtx = supCtx
	e.wg.Add(2)
	go e.superviseLoop(supCtx)
	go e.sweepLoop(supCtx)

	logger.Info(ctx, "Engine started",
		"timeframe", e.cfg.Timeframe().String(),
		"max_concurrent", e.cfg.MaxConcurrent,
		"instruments", len(e.cat.Tradable()),
	)

	// Align with the first candle boundary before the first cycle.
	if err := e.sched.waitUntil(ctx, e.sched.nextBoundary(e.now())); err == nil {
		e.runCycles(ctx)
	}

	supCancel()
	e.wg.Wait()

	if n := e.led.OpenCount(); n > 0 {
		logger.Warn(ctx, "Shutting down with unresolved trades", "count", n)
	}
	logger.Info(ctx, "Engine stopped", "cycles", e.cycles.Load())
	return nil
}

func (e *Engine) runCycles(ctx context.Context) {
	for !e.stopRequested(ctx) {
		e.housekeeping(ctx)

		closeAt := e.sched.nextBoundary(e.now())

		// Phase: prefetch, at cycle start.
		e.prefetch(ctx)
		if e.stopRequested(ctx) {
			return
		}

		// Phase: prefilter, at half-time.
		if err := e.sched.waitUntil(ctx, e.sched.halfTime(closeAt)); err != nil {
			return
		}
		if e.stopRequested(ctx) {
			return
		}
		e.prefilter(ctx)

		// Phase: analyze, at candle close.
		if err := e.sched.waitUntil(ctx, closeAt); err != nil {
			return
		}
		if e.stopRequested(ctx) {
			return
		}
		e.analyze(ctx, closeAt)

		e.cycles.Add(1)
		metrics.IncCycle()
	}
}

// startup loads the catalog and initial balance. An empty catalog is fatal.
func (e *Engine) startup(ctx context.Context) error {
	if err := e.cat.Refresh(ctx, e.brk); err != nil || e.cat.Empty() {
		if err != nil {
			return errors.Join(ErrEmptyCatalog, err)
		}
		return ErrEmptyCatalog
	}
	e.refreshStake(ctx)
	return nil
}

// housekeeping runs the periodic chores that ride on cycle boundaries:
// catalog staleness and the quarantine reset.
func (e *Engine) housekeeping(ctx context.Context) {
	if e.conn.ok() && e.cat.Stale(time.Duration(e.cfg.Intervals.CatalogRefreshSeconds)*time.Second) {
		_ = e.cat.Refresh(ctx, e.brk)
	}

	e.quarMu.Lock()
	if len(e.quarantined) > 0 &&
		e.now().Sub(e.lastQuarReset) > time.Duration(e.cfg.Intervals.QuarantineResetSeconds)*time.Second {
		logger.Info(ctx, "Clearing quarantined instruments", "count", len(e.quarantined))
		e.quarantined = make(map[string]struct{})
		e.lastQuarReset = e.now()
	}
	e.quarMu.Unlock()
}

// Stop requests a cooperative stop, honored at the next phase boundary.
func (e *Engine) Stop() {
	e.stopped.Store(true)
}

func (e *Engine) stopRequested(ctx context.Context) bool {
	if e.stopped.Load() || ctx.Err() != nil {
		return true
	}
	if e.cfg.StopFile != "" {
		if _, err := os.Stat(e.cfg.StopFile); err == nil {
			logger.Info(ctx, "Stop marker file found", "file", e.cfg.StopFile)
			e.stopped.Store(true)
			return true
		}
	}
	return false
}

func (e *Engine) quarantine(instrument string) {
	e.quarMu.Lock()
	if len(e.quarantined) == 0 {
		e.lastQuarReset = e.now()
	}
	e.quarantined[instrument] = struct{}{}
	e.quarMu.Unlock()
}

func (e *Engine) isQuarantined(instrument string) bool {
	e.quarMu.Lock()
	defer e.quarMu.Unlock()
	_, ok := e.quarantined[instrument]
	return ok
}

// skippable reports whether an instrument must be left alone this cycle:
// it already carries an open trade or sits in quarantine.
func (e *Engine) skippable(instrument string) bool {
	return e.led.ActiveOn(instrument) || e.isQuarantined(instrument)
}

// refreshStake recomputes the per-trade stake from the live balance:
// a fixed percentage with a configured floor.
func (e *Engine) refreshStake(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(e.cfg.Timeouts.LivenessSeconds)*time.Second)
	defer cancel()

	balance, err := e.brk.Balance(callCtx)
	if err != nil {
		logger.Warn(ctx, "Balance fetch failed - keeping previous stake", "error", err)
		return
	}
	e.led.SetBalance(balance)
	metrics.SetBalance(balance.InexactFloat64())

	stake := balance.Mul(decimal.NewFromFloat(e.cfg.Stake.Percent)).Div(decimal.NewFromInt(100)).Round(2)
	floor := decimal.NewFromFloat(e.cfg.Stake.Minimum)
	if stake.LessThan(floor) {
		stake = floor
	}

	e.stakeMu.Lock()
	e.stake = stake
	e.stakeMu.Unlock()

	e.risk.seed(balance)
	logger.Info(ctx, "Stake refreshed", "balance", balance.String(), "stake", stake.String())
}

func (e *Engine) currentStake() decimal.Decimal {
	e.stakeMu.Lock()
	defer e.stakeMu.Unlock()
	return e.stake
}

// Status is the snapshot the control layer polls.
type Status struct {
	Running      bool     `json:"running"`
	Connected    bool     `json:"connected"`
	Cycles       int64    `json:"cycles"`
	ActiveTrades int      `json:"active_trades"`
	Shortlist    []string `json:"shortlist"`
	Balance      string   `json:"balance"`
}

func (e *Engine) Status() Status {
	e.shortMu.Lock()
	short := make([]string, 0, len(e.shortlist))
	for id := range e.shortlist {
		short = append(short, id)
	}
	e.shortMu.Unlock()

	return Status{
		Running:      e.running.Load(),
		Connected:    e.conn.ok(),
		Cycles:       e.cycles.Load(),
		ActiveTrades: e.led.OpenCount(),
		Shortlist:    short,
		Balance:      e.led.Balance().String(),
	}
}

// Ledger exposes the trade ledger for read-only control-layer polling.
func (e *Engine) Ledger() *ledger.Ledger {
	return e.led
}
