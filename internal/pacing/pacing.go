// Package pacing spaces network requests politely.
package pacing

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces a politeness delay between requests. Each Wait sleeps for
// the configured delay plus uniform jitter; a token-bucket limiter keeps a
// hard floor under the jittered sleeps so back-to-back calls cannot collapse
// the spacing below delay*(1-jitter).
type Pacer struct {
	limiter *rate.Limiter
	delay   time.Duration
	jitter  float64
}

// New returns a Pacer. A non-positive delay disables pacing entirely.
// Jitter is the fraction of the delay the sleep may vary in either
// direction and is clamped to [0, 1].
func New(delay time.Duration, jitter float64) *Pacer {
	if delay <= 0 {
		return &Pacer{}
	}
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	var limiter *rate.Limiter
	if floor := time.Duration(float64(delay) * (1 - jitter)); floor > 0 {
		limiter = rate.NewLimiter(rate.Every(floor), 1)
	}
	return &Pacer{limiter: limiter, delay: delay, jitter: jitter}
}

// Wait blocks for the jittered delay or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.delay <= 0 {
		return ctx.Err()
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	sleep := p.delay
	if p.jitter > 0 {
		offset := (rand.Float64()*2 - 1) * p.jitter * float64(p.delay)
		sleep = time.Duration(float64(p.delay) + offset)
	}

	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
