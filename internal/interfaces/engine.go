package interfaces

import "context"

// Engine is the candle-synchronized trading pipeline lifecycle exposed to the
// control layer.
type Engine interface {
	Run(ctx context.Context) error
	Stop()
}
