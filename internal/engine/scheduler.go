package engine

import (
	"context"
	"time"
)

// scheduler owns the candle-aligned phase clock. Boundaries are always
// recomputed from wall-clock time so processing overruns never accumulate
// into drift.
type scheduler struct {
	timeframe time.Duration
	now       func() time.Time
}

func newScheduler(timeframe time.Duration, now func() time.Time) *scheduler {
	if now == nil {
		now = time.Now
	}
	return &scheduler{timeframe: timeframe, now: now}
}

// nextBoundary returns the first multiple of the timeframe strictly after t.
func (s *scheduler) nextBoundary(t time.Time) time.Time {
	return t.Truncate(s.timeframe).Add(s.timeframe)
}

// halfTime returns the mid-cycle mark for the candle closing at closeAt.
func (s *scheduler) halfTime(closeAt time.Time) time.Time {
	return closeAt.Add(-s.timeframe / 2)
}

// waitUntil blocks until the wall clock reaches t or ctx is done. A target
// already in the past returns immediately; a phase that overran simply
// shortens the next wait instead of shifting the boundary.
func (s *scheduler) waitUntil(ctx context.Context, t time.Time) error {
	d := t.Sub(s.now())
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
