package usecase

import (
	"context"
	"testing"
	"time"
)

func TestThrottleDelay(t *testing.T) {
	tests := []struct {
		rps  float64
		want time.Duration
	}{
		{1.0, time.Second},
		{2.0, 500 * time.Millisecond},
		{4.0, 250 * time.Millisecond},
		{0, 0},
		{-1, 0},
	}
	for _, tt := range tests {
		if got := NewThrottle(tt.rps).Delay(); got != tt.want {
			t.Errorf("NewThrottle(%v).Delay() = %v, want %v", tt.rps, got, tt.want)
		}
	}
}

func TestThrottleWaitSleeps(t *testing.T) {
	th := NewThrottle(20) // 50ms
	start := time.Now()
	if err := th.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Wait returned after %v, want >= 50ms", elapsed)
	}
}

func TestThrottleDisabledReturnsImmediately(t *testing.T) {
	th := NewThrottle(0)
	start := time.Now()
	if err := th.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		t.Errorf("disabled throttle slept %v", elapsed)
	}
}

func TestThrottleNilSafe(t *testing.T) {
	var th *Throttle
	if err := th.Wait(context.Background()); err != nil {
		t.Errorf("nil throttle Wait: %v", err)
	}
	if th.Delay() != 0 {
		t.Error("nil throttle Delay should be 0")
	}
}

func TestThrottleWaitCancelled(t *testing.T) {
	th := NewThrottle(0.1) // 10s, far beyond the test budget
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := th.Wait(ctx)
	if err == nil {
		t.Fatal("expected context error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Wait did not abort promptly: %v", elapsed)
	}
}

func TestThrottleSpacingBetweenCalls(t *testing.T) {
	// rps=10 means at least 100ms paid before each call, every time,
	// including after idle periods.
	th := NewThrottle(10)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		start := time.Now()
		if err := th.Wait(ctx); err != nil {
			t.Fatal(err)
		}
		if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
			t.Errorf("call %d waited %v, want >= 100ms", i, elapsed)
		}
	}
}
