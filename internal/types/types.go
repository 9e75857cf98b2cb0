package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of a binary trade, named the way the venue names it.
type Direction string

const (
	DirectionCall Direction = "call"
	DirectionPut  Direction = "put"
)

// Candle is one fixed-interval OHLCV bar. Time is the open time in unix
// seconds; Duration is the bar length in seconds.
type Candle struct {
	Instrument string  `json:"instrument,omitempty"`
	Time       int64   `json:"time"`
	Duration   int     `json:"duration"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	Volume     float64 `json:"volume"`
}

// ClosedBy reports whether the candle's interval has fully elapsed at now
// (unix seconds). Only closed candles may feed signal evaluation.
func (c Candle) ClosedBy(now int64) bool {
	return c.Time+int64(c.Duration) <= now
}

func (c Candle) IsBullish() bool { return c.Close > c.Open }
func (c Candle) IsBearish() bool { return c.Close < c.Open }

// Normalize validates a raw candle and clamps high/low so they enclose the
// body. It returns false when the candle is unusable: non-positive open,
// close or volume, or an inverted range.
func (c *Candle) Normalize() bool {
	if c.Open <= 0 || c.Close <= 0 || c.Volume <= 0 {
		return false
	}
	if c.High < c.Low {
		return false
	}
	if c.High < c.Open {
		c.High = c.Open
	}
	if c.High < c.Close {
		c.High = c.Close
	}
	if c.Low > c.Open {
		c.Low = c.Open
	}
	if c.Low > c.Close {
		c.Low = c.Close
	}
	return true
}

// Instrument is one tradable symbol with its venue metadata.
type Instrument struct {
	ID         string  `json:"id"`
	Open       bool    `json:"open"`
	PayoutRate float64 `json:"payout_rate"`
}

// Signal is a directional recommendation from one strategy over a candle
// window. Invalid signals carry a diagnostic explaining the rejection.
type Signal struct {
	Instrument string
	Direction  Direction
	Valid      bool
	Strategy   string
	Diagnostic string
}

// TradeIntent is everything the executor knows right before submission.
type TradeIntent struct {
	Instrument string          `json:"instrument"`
	Direction  Direction       `json:"direction"`
	Stake      decimal.Decimal `json:"stake"`
	Strategy   string          `json:"strategy"`
	SubmitTime time.Time       `json:"submit_time"`
	Duration   time.Duration   `json:"duration"`
}

// Resolution is the lifecycle state of a submitted trade.
type Resolution string

const (
	ResolutionOpen    Resolution = "open"
	ResolutionWin     Resolution = "win"
	ResolutionLoss    Resolution = "loss"
	ResolutionUnknown Resolution = "unknown"
)

// OpenTrade is a submitted trade awaiting (or past) resolution.
type OpenTrade struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	TradeIntent
	ExpiryTime time.Time       `json:"expiry_time"`
	Resolution Resolution      `json:"resolution"`
	PnL        decimal.Decimal `json:"pnl"`
}

// Overdue reports whether the trade has outlived its expiry plus grace
// without a confirmed outcome.
func (t OpenTrade) Overdue(now time.Time, grace time.Duration) bool {
	return t.Resolution == ResolutionOpen && now.After(t.ExpiryTime.Add(grace))
}

// Expired reports whether the trade's nominal expiry has passed.
func (t OpenTrade) Expired(now time.Time) bool {
	return now.After(t.ExpiryTime)
}

// TradeOutcome is the venue-confirmed result of one trade.
type TradeOutcome struct {
	Win bool
	PnL decimal.Decimal
}
