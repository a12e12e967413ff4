package service

import (
	"testing"
	"time"
)

func TestMemoryRateLimiterBlocksOverMax(t *testing.T) {
	limiter := NewMemoryRateLimiter(time.Minute, 2)

	if !limiter.Allow("login:1.2.3.4") {
		t.Fatalf("first attempt should pass")
	}
	if !limiter.Allow("login:1.2.3.4") {
		t.Fatalf("second attempt should pass")
	}
	if limiter.Allow("login:1.2.3.4") {
		t.Fatalf("third attempt should be blocked")
	}
	if !limiter.Allow("login:5.6.7.8") {
		t.Fatalf("other key should not be affected")
	}
}

func TestMemoryRateLimiterCredit(t *testing.T) {
	limiter := NewMemoryRateLimiter(time.Minute, 1)

	if !limiter.Allow("login:1.2.3.4") {
		t.Fatalf("first attempt should pass")
	}
	limiter.Credit("login:1.2.3.4")
	if !limiter.Allow("login:1.2.3.4") {
		t.Fatalf("credited attempt should pass again")
	}
	if limiter.Allow("login:1.2.3.4") {
		t.Fatalf("uncredited attempt should be blocked")
	}
}

func TestMemoryRateLimiterWindowExpires(t *testing.T) {
	limiter := NewMemoryRateLimiter(50*time.Millisecond, 1)

	if !limiter.Allow("create:1.2.3.4") {
		t.Fatalf("first attempt should pass")
	}
	if limiter.Allow("create:1.2.3.4") {
		t.Fatalf("second attempt should be blocked")
	}
	time.Sleep(60 * time.Millisecond)
	if !limiter.Allow("create:1.2.3.4") {
		t.Fatalf("attempt after window should pass")
	}
}
