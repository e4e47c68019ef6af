// Package backoff provides exponential delays for retried I/O loops.
package backoff

import (
	"context"
	"time"
)

// Backoff is an exponential delay that doubles (by multiplier) after every
// Wait, capped at a maximum. It is not safe for concurrent use.
type Backoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	currentDelay time.Duration
}

// New creates a Backoff. A multiplier below 1 is treated as 1.
func New(initialDelay, maxDelay time.Duration, multiplier float64) *Backoff {
	if multiplier < 1 {
		multiplier = 1
	}
	if maxDelay < initialDelay {
		maxDelay = initialDelay
	}
	return &Backoff{
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
		multiplier:   multiplier,
		currentDelay: initialDelay,
	}
}

// Wait sleeps for the current delay, then grows it for the next call.
// Returns ctx.Err() if the context ends first; the delay is not grown then.
func (b *Backoff) Wait(ctx context.Context) error {
	timer := time.NewTimer(b.currentDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		b.currentDelay = time.Duration(float64(b.currentDelay) * b.multiplier)
		if b.currentDelay > b.maxDelay {
			b.currentDelay = b.maxDelay
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset returns the delay to its initial value after a success.
func (b *Backoff) Reset() {
	b.currentDelay = b.initialDelay
}

// CurrentDelay returns the delay the next Wait will use.
func (b *Backoff) CurrentDelay() time.Duration {
	return b.currentDelay
}
