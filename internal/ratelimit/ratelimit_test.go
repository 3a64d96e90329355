package ratelimit

import (
	"testing"
	"time"
)

func TestBurstThenDeny(t *testing.T) {
	limiter := New(Config{
		RequestsPerMinute: 60,
		BurstSize:         5,
		CleanupInterval:   time.Minute,
	})
	defer limiter.Stop()

	for i := 0; i < 5; i++ {
		if !limiter.Allow("caller") {
			t.Errorf("request %d within burst should be allowed", i)
		}
	}
	if limiter.Allow("caller") {
		t.Error("request past burst should be denied")
	}

	// One token replenishes per second at 60/min.
	time.Sleep(time.Second)
	if !limiter.Allow("caller") {
		t.Error("request after replenishment should be allowed")
	}
}

func TestPerClientBuckets(t *testing.T) {
	limiter := New(Config{
		RequestsPerMinute: 60,
		BurstSize:         3,
		CleanupInterval:   time.Minute,
	})
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		limiter.Allow("client-a")
	}
	if limiter.Allow("client-a") {
		t.Error("client-a should be rate limited")
	}
	if !limiter.Allow("client-b") {
		t.Error("client-b has its own bucket and should be allowed")
	}
}

func TestReplenishRate(t *testing.T) {
	limiter := New(Config{
		RequestsPerMinute: 600, // 10 per second
		BurstSize:         1,
		CleanupInterval:   time.Minute,
	})
	defer limiter.Stop()

	if !limiter.Allow("caller") {
		t.Error("first request should be allowed")
	}
	if limiter.Allow("caller") {
		t.Error("second immediate request should be denied")
	}

	time.Sleep(110 * time.Millisecond)
	if !limiter.Allow("caller") {
		t.Error("request after replenish window should be allowed")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.RequestsPerMinute != 60 || cfg.BurstSize != 10 || cfg.CleanupInterval != time.Minute {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}
