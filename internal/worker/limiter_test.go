package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1) // 100 rps, burst 1
	ctx := context.Background()

	if err := limiter.Wait(ctx, "http://graph.internal:8081"); err != nil {
		t.Errorf("wait failed: %v", err)
	}

	// A different endpoint host has its own bucket
	if err := limiter.Wait(ctx, "http://rules.internal:8082"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_RateLimit(t *testing.T) {
	// 10 rps, burst 1: the second request must wait ~100ms
	limiter := NewLimiter(10, 1)
	ctx := context.Background()
	endpoint := "http://graph.internal:8081"

	if err := limiter.Wait(ctx, endpoint); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, endpoint); err != nil {
		t.Fatalf("second wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("expected rate limiting delay, got %v", elapsed)
	}
}

func TestLimiter_Allow(t *testing.T) {
	limiter := NewLimiter(1, 1)
	endpoint := "http://ai.internal:8083"

	if !limiter.Allow(endpoint) {
		t.Error("first request should be allowed")
	}
	if limiter.Allow(endpoint) {
		t.Error("second immediate request should be limited")
	}
}

func TestLimiter_SetHostRate(t *testing.T) {
	limiter := NewLimiter(1, 1)
	limiter.SetHostRate("fast.internal", 1000, 100)

	allowed := 0
	for i := 0; i < 10; i++ {
		if limiter.Allow("http://fast.internal/x") {
			allowed++
		}
	}
	if allowed != 10 {
		t.Errorf("expected 10 allowed requests on custom rate, got %d", allowed)
	}
}

func TestLimiter_SetEndpointRate(t *testing.T) {
	limiter := NewLimiter(1, 1)
	if err := limiter.SetEndpointRate("http://rules.internal:8082", 1000, 100); err != nil {
		t.Fatalf("set endpoint rate failed: %v", err)
	}

	// The endpoint's own budget applies instead of the default
	allowed := 0
	for i := 0; i < 10; i++ {
		if limiter.Allow("http://rules.internal:8082/runs/R1/rule") {
			allowed++
		}
	}
	if allowed != 10 {
		t.Errorf("expected 10 allowed requests on custom endpoint rate, got %d", allowed)
	}

	if err := limiter.SetEndpointRate("://not-a-url", 10, 5); err == nil {
		t.Error("expected error for invalid endpoint URL")
	}
}

func TestLimiter_InvalidURL(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.Allow("://not-a-url") {
		t.Error("expected invalid URL to be rejected")
	}
}
