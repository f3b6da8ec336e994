// Package pacing inserts uniformly jittered waits before outbound calls.
package pacing

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// ErrInvalidWindow is returned for a zero or inverted jitter window.
var ErrInvalidWindow = errors.New("pacing window must satisfy 0 < min <= max")

// Pacer draws a delay uniformly from [min, max].
type Pacer struct {
	min time.Duration
	max time.Duration
}

// New validates the window. A zero delay is not supported.
func New(minDelay, maxDelay time.Duration) (*Pacer, error) {
	if minDelay <= 0 || maxDelay < minDelay {
		return nil, ErrInvalidWindow
	}
	return &Pacer{min: minDelay, max: maxDelay}, nil
}

// Next returns the next delay without waiting.
func (p *Pacer) Next() time.Duration {
	span := p.max - p.min
	if span <= 0 {
		return p.min
	}
	return p.min + rand.N(span+1)
}

// Wait blocks for the next delay or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return sleepOrCancel(ctx, p.Next())
}

// sleepOrCancel blocks for d or until ctx is cancelled.
func sleepOrCancel(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
