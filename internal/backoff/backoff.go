// Package backoff implements the exponential-backoff-with-jitter shared by
// the BLE advertising restart, BLE send retry/circuit-breaker, and MQTT
// reconnect paths (spec.md §4.3, §4.4).
package backoff

import (
	"math/rand"
	"time"
)

// Backoff computes a doubling delay bounded by a maximum, with +/-10%
// jitter applied before each use. A successful operation resets it to the
// initial delay (spec.md §8: "a success resets to the initial value").
type Backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

// New creates a Backoff starting at initial, capped at max.
func New(initial, max time.Duration) *Backoff {
	return &Backoff{initial: initial, max: max, current: initial}
}

// Next returns the next delay (with jitter applied) and doubles the
// internal delay, capped at max, for the subsequent call.
func (b *Backoff) Next() time.Duration {
	delay := jitter(b.current)
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return delay
}

// Peek returns the current un-jittered delay without advancing state.
func (b *Backoff) Peek() time.Duration {
	return b.current
}

// Reset restores the delay to its initial value.
func (b *Backoff) Reset() {
	b.current = b.initial
}

// jitter applies +/-10% uniform jitter to d.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	spread := float64(d) * 0.10
	delta := (rand.Float64()*2 - 1) * spread
	out := time.Duration(float64(d) + delta)
	if out < 0 {
		out = 0
	}
	return out
}
