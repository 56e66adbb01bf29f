package retry

import (
	"context"
	"time"
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// TimerSleep is the real Sleeper.
func TimerSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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

// NoWait disables a FixedPolicy pause. A zero duration means "use the default".
const NoWait time.Duration = -1

// FixedPolicy is a bounded loop with a constant pause between iterations and a
// single settle pause after the loop when any work happened. Platform state
// takes a moment to propagate after each removal.
type FixedPolicy struct {
	MaxIterations int
	Interval      time.Duration
	Settle        time.Duration
}

// DefaultCleanupPolicy is 5 iterations, 1s apart, 2s settle.
func DefaultCleanupPolicy() FixedPolicy {
	return FixedPolicy{
		MaxIterations: 5,
		Interval:      time.Second,
		Settle:        2 * time.Second,
	}
}

// Normalize fills zero fields from DefaultCleanupPolicy. Negative durations,
// NoWait included, become zero.
func (p FixedPolicy) Normalize() FixedPolicy {
	def := DefaultCleanupPolicy()
	if p.MaxIterations <= 0 {
		p.MaxIterations = def.MaxIterations
	}
	if p.Interval == 0 {
		p.Interval = def.Interval
	}
	if p.Settle == 0 {
		p.Settle = def.Settle
	}
	if p.Interval < 0 {
		p.Interval = 0
	}
	if p.Settle < 0 {
		p.Settle = 0
	}
	return p
}

// Budget is the longest total wait the policy can impose.
func (p FixedPolicy) Budget() time.Duration {
	p = p.Normalize()
	return time.Duration(p.MaxIterations)*p.Interval + p.Settle
}
