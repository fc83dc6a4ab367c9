package services

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestRateLimiter(t *testing.T) {
	t.Run("Wait Without Cooldown Returns Immediately", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		limiter := NewRateLimiter(clock)

		if err := limiter.Wait(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("Wait Blocks Until Deadline", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		limiter := NewRateLimiter(clock)
		limiter.SetCooldown(2 * time.Second)

		done := make(chan error, 1)
		go func() {
			done <- limiter.Wait(context.Background())
		}()

		// The waiter must be parked on the fake clock before advancing.
		clock.BlockUntil(1)

		select {
		case <-done:
			t.Fatal("Wait returned before the cooldown elapsed")
		default:
		}

		clock.Advance(2 * time.Second)

		if err := <-done; err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("Wait Respects Context Cancellation", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		limiter := NewRateLimiter(clock)
		limiter.SetCooldown(time.Hour)

		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- limiter.Wait(ctx)
		}()

		clock.BlockUntil(1)
		cancel()

		if err := <-done; err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("SetCooldown Only Moves Forward", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		limiter := NewRateLimiter(clock)

		limiter.SetCooldown(10 * time.Second)
		limiter.SetCooldown(time.Second)

		if remaining := limiter.Remaining(); remaining != 10*time.Second {
			t.Errorf("expected remaining 10s, got %v", remaining)
		}
	})

	t.Run("Remaining After Expiry Is Zero", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		limiter := NewRateLimiter(clock)

		limiter.SetCooldown(time.Second)
		clock.Advance(2 * time.Second)

		if remaining := limiter.Remaining(); remaining != 0 {
			t.Errorf("expected remaining 0, got %v", remaining)
		}
	})
}
