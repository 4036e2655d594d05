package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestKeyedRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		burst    int
		calls    int
		wantPass int
	}{
		{
			name:     "burst allows initial requests",
			rps:      1,
			burst:    3,
			calls:    3,
			wantPass: 3,
		},
		{
			name:     "exceeding burst blocks",
			rps:      1,
			burst:    2,
			calls:    5,
			wantPass: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(tt.rps, tt.burst)
			defer rl.Stop()

			passed := 0
			for range tt.calls {
				if rl.Allow("10.0.0.1") {
					passed++
				}
			}

			if passed != tt.wantPass {
				t.Errorf("Allow() passed %d, want %d", passed, tt.wantPass)
			}
		})
	}
}

func TestKeyedRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := New(1, 1)
	defer rl.Stop()

	if !rl.Allow("a") {
		t.Fatal("first request for a should pass")
	}
	if rl.Allow("a") {
		t.Fatal("second request for a should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("b has its own bucket")
	}
	if rl.Len() != 2 {
		t.Errorf("Len() = %d, want 2", rl.Len())
	}
}

func TestPerMinute(t *testing.T) {
	rl := PerMinute(3)
	defer rl.Stop()

	for i := range 3 {
		if !rl.Allow("ip") {
			t.Fatalf("request %d should pass", i)
		}
	}
	if rl.Allow("ip") {
		t.Error("fourth request within a minute should be limited")
	}
}

func TestKeyedRateLimiter_EvictIdle(t *testing.T) {
	rl := New(1, 1)
	defer rl.Stop()

	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.Allow("old")

	now = now.Add(DefaultIdleTTL / 2)
	rl.Allow("fresh")

	now = now.Add(DefaultIdleTTL/2 + time.Second)
	rl.evictIdle()

	if rl.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", rl.Len())
	}
	// The evicted key starts over with a full bucket.
	if !rl.Allow("old") {
		t.Error("evicted key should get a fresh bucket")
	}
}

func TestKeyedRateLimiter_Concurrent(t *testing.T) {
	rl := New(1, 50)
	defer rl.Stop()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		passed int
	)
	for range 100 {
		wg.Go(func() {
			if rl.Allow("shared") {
				mu.Lock()
				passed++
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	if passed < 50 || passed > 51 {
		t.Errorf("passed = %d, want about 50", passed)
	}
}

func TestKeyedRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := New(1, 1)
	rl.Stop()
	rl.Stop()
}
