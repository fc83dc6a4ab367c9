package services

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// RateLimiter is the process-wide cooldown gate set after a 429 response.
// All outbound provider calls wait on the same gate before issuing a
// request; the deadline only ever moves forward.
type RateLimiter struct {
	mu            sync.Mutex
	cooldownUntil time.Time
	clock         clockwork.Clock
}

// NewRateLimiter creates a RateLimiter. A nil clock defaults to the real clock.
func NewRateLimiter(clock clockwork.Clock) *RateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RateLimiter{clock: clock}
}

// Wait blocks until the cooldown deadline has passed or ctx is done.
func (l *RateLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	wait := l.cooldownUntil.Sub(l.clock.Now())
	l.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	select {
	case <-l.clock.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetCooldown moves the deadline to now + d if that is later than the
// current deadline.
func (l *RateLimiter) SetCooldown(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	until := l.clock.Now().Add(d)
	if until.After(l.cooldownUntil) {
		l.cooldownUntil = until
	}
}

// Remaining returns how long the gate is still closed. Zero means requests
// may proceed immediately.
func (l *RateLimiter) Remaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	remaining := l.cooldownUntil.Sub(l.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}
