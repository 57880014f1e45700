// Package pacer throttles a loop to a target frame rate.
//
// Tick sleeps only for whatever is left of the frame period since the previous
// tick, so the time spent doing work inside the loop counts towards the period.
package pacer

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// Pacer enforces a minimum interval between consecutive Tick calls.
//
// Configure may be called from any goroutine; Tick belongs to the loop it paces.
type Pacer struct {
	mu      sync.Mutex
	rate    float64
	period  time.Duration
	enabled bool
	last    time.Time
	primed  bool

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Pacer.
type Option func(*Pacer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pacer) { p.now = now }
}

// WithSleep replaces the context-aware sleep.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Pacer) { p.sleep = sleep }
}

// New creates a disabled pacer. Call Configure to set a rate.
func New(opts ...Option) *Pacer {
	p := &Pacer{
		now:   time.Now,
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Configure sets the target rate in frames per second.
//
// The period is round(1000/rate) milliseconds. A rate of 0 disables pacing.
// Negative or non-finite rates are rejected and leave the pacer unchanged.
func (p *Pacer) Configure(rate float64) error {
	if rate < 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return fmt.Errorf("pacer: invalid rate %v (must be >= 0)", rate)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.rate = rate
	if rate == 0 {
		p.enabled = false
		p.period = 0
		return nil
	}
	p.enabled = true
	p.period = time.Duration(math.Round(1000/rate)) * time.Millisecond
	return nil
}

// Rate returns the configured rate (0 when disabled).
func (p *Pacer) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

// Period returns the frame period (0 when disabled).
func (p *Pacer) Period() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.period
}

// MillisPerFrame returns the period in whole milliseconds.
func (p *Pacer) MillisPerFrame() int64 {
	return p.Period().Milliseconds()
}

// Reset forgets the previous tick; the next Tick returns immediately.
func (p *Pacer) Reset() {
	p.mu.Lock()
	p.primed = false
	p.mu.Unlock()
}

// Tick waits until at least one period has passed since the previous tick.
//
// The first tick after New or Reset never waits, nor does a tick when pacing
// is disabled or when the previous iteration already took a full period. The
// reference time is updated on every call, whatever the branch.
//
// Returns ctx.Err() if the wait is cancelled.
func (p *Pacer) Tick(ctx context.Context) error {
	p.mu.Lock()
	now := p.now()
	var wait time.Duration
	if p.enabled && p.primed {
		if elapsed := now.Sub(p.last); elapsed < p.period {
			wait = p.period - elapsed
		}
	}
	p.primed = true
	p.last = now.Add(wait)
	p.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	if err := p.sleep(ctx, wait); err != nil {
		return err
	}

	p.mu.Lock()
	p.last = p.now()
	p.mu.Unlock()
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
