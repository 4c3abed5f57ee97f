package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces consecutive calls to an external service by a fixed delay.
// The first call goes through immediately.
type Pacer struct {
	delay  time.Duration
	bucket *rate.Limiter
}

// NewPacer creates a pacer allowing one call per delay. A delay of zero or
// less disables pacing.
func NewPacer(delay time.Duration) *Pacer {
	p := &Pacer{delay: delay}
	if delay > 0 {
		p.bucket = rate.NewLimiter(rate.Every(delay), 1)
	}
	return p
}

// Wait blocks until the next call is allowed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.bucket == nil {
		return ctx.Err()
	}
	return p.bucket.Wait(ctx)
}

// Delay returns the configured spacing.
func (p *Pacer) Delay() time.Duration {
	if p == nil {
		return 0
	}
	return p.delay
}
