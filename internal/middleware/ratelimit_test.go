package middleware

import (
	"testing"
	"time"
)

func TestRateLimiterRefillsAfterInterval(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("s1") || !rl.Allow("s1") {
		t.Fatalf("first two calls should pass")
	}
	if rl.Allow("s1") {
		t.Fatalf("third call should be limited")
	}
	if !rl.Allow("s2") {
		t.Fatalf("other keys have their own bucket")
	}

	now = now.Add(time.Minute)
	if !rl.Allow("s1") {
		t.Fatalf("bucket should refill after the interval")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		if !rl.Allow("x") {
			t.Fatalf("rate 0 should disable limiting")
		}
	}
}
