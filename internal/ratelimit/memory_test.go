package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterAllowsUnderLimit(t *testing.T) {
	limiter := NewMemoryLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		decision, err := limiter.Check(context.Background(), "client-a")
		if err != nil {
			t.Fatalf("Check() error: %v", err)
		}
		if !decision.Allowed {
			t.Fatalf("request %d denied under limit", i+1)
		}
	}

	decision, err := limiter.Check(context.Background(), "client-a")
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if decision.Allowed {
		t.Error("request over limit allowed")
	}
	if decision.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", decision.Remaining)
	}
	if decision.Reset <= time.Now().Unix() {
		t.Errorf("Reset = %d, want a future timestamp", decision.Reset)
	}
}

func TestMemoryLimiterIsolatesClients(t *testing.T) {
	limiter := NewMemoryLimiter(1, time.Minute)

	if d, _ := limiter.Check(context.Background(), "client-a"); !d.Allowed {
		t.Fatal("client-a first request denied")
	}
	if d, _ := limiter.Check(context.Background(), "client-a"); d.Allowed {
		t.Fatal("client-a second request allowed")
	}
	if d, _ := limiter.Check(context.Background(), "client-b"); !d.Allowed {
		t.Fatal("client-b blocked by client-a usage")
	}
}
