package interfaces

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"candle-trading-bot/internal/types"
)

// ErrOutcomePending is returned by PollOutcome while the venue has not yet
// settled the trade. Callers retry at the next sweep, never in a tight loop.
var ErrOutcomePending = errors.New("trade outcome pending")

// ErrInstrumentClosed is returned by SubmitTrade when the venue rejects the
// order because the market closed between prefilter and submission. The
// executor quarantines the instrument for a while instead of retrying.
var ErrInstrumentClosed = errors.New("instrument closed")

// Broker is the brokerage network client consumed by the engine. Every call
// is expected to honor ctx deadlines; a timeout is a recoverable failure of
// that single call.
type Broker interface {
	// FetchCandles returns the most recent count candles of the given period
	// (seconds) for one instrument, oldest first.
	FetchCandles(ctx context.Context, instrument string, count, period int) ([]types.Candle, error)

	// SubmitTrade places a directional trade and returns the venue trade id.
	SubmitTrade(ctx context.Context, intent types.TradeIntent) (string, error)

	// PollOutcome reports the settled result of a trade, or ErrOutcomePending.
	PollOutcome(ctx context.Context, externalID string) (types.TradeOutcome, error)

	// Balance returns the current account balance; used as the liveness probe.
	Balance(ctx context.Context) (decimal.Decimal, error)

	// Reconnect re-establishes the venue session. Must be idempotent: calling
	// it while connected is a no-op returning true.
	Reconnect(ctx context.Context) (bool, error)

	// ListInstruments returns instruments whose payout rate meets minPayout,
	// including their open/closed state.
	ListInstruments(ctx context.Context, minPayout float64) ([]types.Instrument, error)
}
