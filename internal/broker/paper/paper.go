// Package paper is an in-memory broker for DRY_RUN mode. It serves
// synthetic random-walk candles, accepts every trade against a simulated
// balance, and settles outcomes once the trade's expiry passes.
package paper

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"candle-trading-bot/internal/interfaces"
	"candle-trading-bot/internal/types"
)

// winProbability is the chance a paper trade settles as a win. Slightly
// below break-even at typical payouts so dry runs exercise the loss path.
const winProbability = 0.5

var defaultInstruments = []string{
	"EURUSD_otc", "GBPUSD_otc", "USDJPY_otc", "AUDCAD_otc",
	"USDTRY_otc", "USDBDT_otc", "USDNGN_otc", "EURGBP_otc",
}

type paperTrade struct {
	intent  types.TradeIntent
	expiry  time.Time
	payout  float64
	win     bool
	settled bool
}

// Broker simulates a binary-options venue. Candle history is regenerated
// per call from the instrument's walking price, so it is plausible but not
// stable across fetches; that is fine for a dry run.
type Broker struct {
	mu          sync.Mutex
	rng         *rand.Rand
	balance     decimal.Decimal
	lastPrice   map[string]float64
	payouts     map[string]float64
	instruments []string
	trades      map[string]*paperTrade
	now         func() time.Time
}

// New builds a paper broker with the given starting balance. An empty
// instrument list falls back to a built-in OTC set.
func New(startingBalance float64, instruments []string, seed int64) *Broker {
	if len(instruments) == 0 {
		instruments = defaultInstruments
	}
	b := &Broker{
		rng:         rand.New(rand.NewSource(seed)),
		balance:     decimal.NewFromFloat(startingBalance),
		lastPrice:   make(map[string]float64),
		payouts:     make(map[string]float64),
		instruments: instruments,
		trades:      make(map[string]*paperTrade),
		now:         time.Now,
	}
	for _, id := range instruments {
		b.lastPrice[id] = basePrice(id)
		b.payouts[id] = 70 + b.rng.Float64()*22
	}
	return b
}

// basePrice seeds the random walk inside the plausibility band for the
// instrument's quote currency.
func basePrice(instrument string) float64 {
	switch {
	case strings.Contains(instrument, "JPY"):
		return 150
	case strings.Contains(instrument, "NGN"):
		return 1500
	case strings.Contains(instrument, "BDT"):
		return 120
	case strings.Contains(instrument, "TRY"):
		return 40
	default:
		return 1.1
	}
}

func (b *Broker) FetchCandles(ctx context.Context, instrument string, count, period int) ([]types.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	price, ok := b.lastPrice[instrument]
	if !ok {
		return nil, fmt.Errorf("paper: unknown instrument %q", instrument)
	}

	// Newest candle ends at the last elapsed period boundary, so every
	// candle returned is already closed.
	end := b.now().Unix() / int64(period) * int64(period)
	start := end - int64(count)*int64(period)

	candles := make([]types.Candle, 0, count)
	for ts := start; ts < end; ts += int64(period) {
		open := price
		drift := b.rng.NormFloat64() * 0.0008 * open
		close := open + drift
		high := max(open, close) + b.rng.Float64()*0.0004*open
		low := min(open, close) - b.rng.Float64()*0.0004*open
		candles = append(candles, types.Candle{
			Instrument: instrument,
			Time:       ts,
			Duration:   period,
			Open:       open,
			High:       high,
			Low:        low,
			Close:      close,
			Volume:     100 + b.rng.Float64()*900,
		})
		price = close
	}
	b.lastPrice[instrument] = price
	return candles, nil
}

func (b *Broker) SubmitTrade(ctx context.Context, intent types.TradeIntent) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	payout, ok := b.payouts[intent.Instrument]
	if !ok {
		return "", interfaces.ErrInstrumentClosed
	}
	if intent.Stake.GreaterThan(b.balance) {
		return "", fmt.Errorf("paper: stake %s exceeds balance %s", intent.Stake, b.balance)
	}

	b.balance = b.balance.Sub(intent.Stake)
	id := uuid.NewString()
	b.trades[id] = &paperTrade{
		intent: intent,
		expiry: intent.SubmitTime.Add(intent.Duration),
		payout: payout,
		win:    b.rng.Float64() < winProbability,
	}
	return id, nil
}

func (b *Broker) PollOutcome(ctx context.Context, externalID string) (types.TradeOutcome, error) {
	if err := ctx.Err(); err != nil {
		return types.TradeOutcome{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.trades[externalID]
	if !ok {
		return types.TradeOutcome{}, fmt.Errorf("paper: unknown trade %q", externalID)
	}
	if b.now().Before(t.expiry) {
		return types.TradeOutcome{}, interfaces.ErrOutcomePending
	}

	if !t.settled {
		t.settled = true
		if t.win {
			profit := t.intent.Stake.Mul(decimal.NewFromFloat(t.payout / 100))
			b.balance = b.balance.Add(t.intent.Stake).Add(profit)
		}
	}

	if t.win {
		profit := t.intent.Stake.Mul(decimal.NewFromFloat(t.payout / 100)).Round(2)
		return types.TradeOutcome{Win: true, PnL: profit}, nil
	}
	return types.TradeOutcome{Win: false, PnL: t.intent.Stake.Neg()}, nil
}

func (b *Broker) Balance(ctx context.Context) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Decimal{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance, nil
}

// Reconnect is a no-op; the paper venue is always reachable.
func (b *Broker) Reconnect(ctx context.Context) (bool, error) {
	return true, ctx.Err()
}

func (b *Broker) ListInstruments(ctx context.Context, minPayout float64) ([]types.Instrument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]types.Instrument, 0, len(b.instruments))
	for _, id := range b.instruments {
		if b.payouts[id] < minPayout {
			continue
		}
		out = append(out, types.Instrument{
			ID:         id,
			Open:       true,
			PayoutRate: b.payouts[id],
		})
	}
	return out, nil
}

var _ interfaces.Broker = (*Broker)(nil)
