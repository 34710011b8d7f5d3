package middleware

import (
	"testing"
	"time"
)

func TestKeyedRateLimiterBurstThenRefill(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewKeyedRateLimiter(10, time.Minute, 2, time.Hour)
	limiter.now = func() time.Time { return now }

	if !limiter.Allow("login:1.2.3.4") || !limiter.Allow("login:1.2.3.4") {
		t.Fatal("expected burst to be allowed")
	}
	if limiter.Allow("login:1.2.3.4") {
		t.Fatal("expected third attempt to be limited")
	}
	if !limiter.Allow("login:5.6.7.8") {
		t.Fatal("other keys must have their own bucket")
	}

	now = now.Add(6 * time.Second)
	if !limiter.Allow("login:1.2.3.4") {
		t.Fatal("expected a token after the refill interval")
	}
}

func TestKeyedRateLimiterDropsIdleKeys(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewKeyedRateLimiter(1, time.Second, 1, time.Minute)
	limiter.now = func() time.Time { return now }

	limiter.Allow("a")
	limiter.Allow("b")
	if limiter.Len() != 2 {
		t.Fatalf("expected two keys got %d", limiter.Len())
	}

	now = now.Add(2 * time.Minute)
	limiter.Allow("c")
	if limiter.Len() != 1 {
		t.Fatalf("expected idle keys swept got %d", limiter.Len())
	}
}
