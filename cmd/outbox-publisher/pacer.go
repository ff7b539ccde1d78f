package main

import (
	"context"
	"math/rand/v2"
	"time"
)

// pacer spaces polls: the base interval when idle, doubling up to ceiling
// while batches keep failing.
type pacer struct {
	base    time.Duration
	ceiling time.Duration
	current time.Duration
}

func newPacer(base, ceiling time.Duration) *pacer {
	if ceiling < base {
		ceiling = base
	}
	return &pacer{base: base, ceiling: ceiling, current: base}
}

func (p *pacer) busy() time.Duration {
	p.current = p.base
	return 0
}

func (p *pacer) idle() time.Duration {
	p.current = p.base
	return jitter(p.base)
}

func (p *pacer) failure() time.Duration {
	p.current = min(p.current*2, p.ceiling)
	return jitter(p.current)
}

// jitter adds up to a quarter of d so relays started together drift apart.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(d/4+1)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
