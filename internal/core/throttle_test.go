package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestThrottleFirstCallDoesNotWait(t *testing.T) {
	th := NewThrottle(time.Hour)

	start := time.Now()
	if err := th.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("first call waited %v", elapsed)
	}
}

func TestThrottleEnforcesMinimumInterval(t *testing.T) {
	th := NewThrottle(30 * time.Millisecond)

	if err := th.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	start := time.Now()
	if err := th.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("second call permitted after %v, want about 30ms", elapsed)
	}
}

func TestThrottleZeroIntervalNeverWaits(t *testing.T) {
	th := NewThrottle(0)

	start := time.Now()
	for i := 0; i < 10; i++ {
		if err := th.Wait(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("10 calls with a zero interval took %v", elapsed)
	}
}

func TestThrottleHonorsContextDeadline(t *testing.T) {
	th := NewThrottle(time.Hour)
	if err := th.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := th.Wait(ctx)
	if err == nil {
		t.Fatal("want an error when the wait outlives the context")
	}
	if err != context.DeadlineExceeded {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestThrottleSerializesConcurrentCallers(t *testing.T) {
	const interval = 15 * time.Millisecond
	th := NewThrottle(interval)

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := th.Wait(context.Background()); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// First caller passes immediately, the other three each wait one
	// interval behind the previous one.
	if elapsed := time.Since(start); elapsed < 3*interval-5*time.Millisecond {
		t.Errorf("4 concurrent calls completed in %v, want at least about %v", elapsed, 3*interval)
	}
}
