package indexer

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter_WaitAllowsWithinLimit(t *testing.T) {
	rl := newRateLimiter(100)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("Wait() error on iteration %d: %v", i, err)
		}
	}
}

func TestRateLimiter_WaitCancelledContext(t *testing.T) {
	rl := newRateLimiter(1)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() error: %v", err)
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rl.Wait(cancelCtx); err == nil {
		t.Fatal("Wait() with cancelled context should return error")
	}
}

func TestRateLimiter_WaitContextTimeout(t *testing.T) {
	rl := newRateLimiter(1)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() error: %v", err)
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := rl.Wait(timeoutCtx); err == nil {
		t.Fatal("Wait() with expired timeout should return error")
	}
}
