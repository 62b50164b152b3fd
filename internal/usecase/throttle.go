package usecase

import (
	"context"
	"time"
)

// Throttle enforces a fixed delay before every provider operation:
// 1/rps seconds, unconditionally. This is deliberately not a token
// bucket; a bucket would let calls after an idle period go through
// immediately, while the contract here is a constant spacing paid
// before each call. rps <= 0 disables the delay entirely.
type Throttle struct {
	delay time.Duration
}

// NewThrottle builds a throttle for the given sustained rate.
func NewThrottle(requestsPerSecond float64) *Throttle {
	if requestsPerSecond <= 0 {
		return &Throttle{}
	}
	return &Throttle{delay: time.Duration(float64(time.Second) / requestsPerSecond)}
}

// Delay returns the fixed pre-call delay (zero when disabled).
func (t *Throttle) Delay() time.Duration {
	if t == nil {
		return 0
	}
	return t.delay
}

// Wait sleeps for the fixed delay, or returns early with the context's
// error if it is cancelled first. A nil or disabled throttle returns
// immediately.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil || t.delay <= 0 {
		return nil
	}
	select {
	case <-time.After(t.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
