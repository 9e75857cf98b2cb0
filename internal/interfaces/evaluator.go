package interfaces

import "candle-trading-bot/internal/types"

// Evaluator is one pattern-detection strategy: a pure function over a candle
// window. It must not perform I/O or retain the window.
type Evaluator interface {
	Name() string
	Evaluate(instrument string, window []types.Candle) types.Signal
}

// Preconditioner is implemented by evaluators that expose a cheap structural
// precondition testable at half-time. Instruments passing it in either
// direction are shortlisted for full analysis at candle close; evaluators
// without it are analyzed from the prefetch-phase cache instead.
type Preconditioner interface {
	Precondition(window []types.Candle) (lowExtreme, highExtreme bool)
}
