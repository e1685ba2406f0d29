package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/neuragate/neuragate/internal/filterchain"
)

func TestStageRejectsBeyondBurst(t *testing.T) {
	factory := NewFactory(NewLocal())
	s, err := factory(filterchain.Args{"replenish-rate": "1", "burst-capacity": "2", "key": "client-ip"})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1111"
	ctx, state := filterchain.WithState(context.Background())

	okNext := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Header: make(http.Header)}, nil
	}

	for i := 0; i < 2; i++ {
		resp, err := s.Invoke(ctx, req, okNext)
		if err != nil {
			t.Fatalf("Invoke: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, resp.StatusCode)
		}
	}

	resp, err := s.Invoke(ctx, req, okNext)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get(RetryAfterHeader) == "" {
		t.Error("429 response missing Retry-After header")
	}
	if resp.Header.Get(HeaderRemaining) != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", resp.Header.Get(HeaderRemaining))
	}
	if resp.Header.Get(HeaderReplenishRate) != "1" {
		t.Errorf("X-RateLimit-Replenish-Rate = %q, want 1", resp.Header.Get(HeaderReplenishRate))
	}
	if resp.Header.Get(HeaderBurstCapacity) != "2" {
		t.Errorf("X-RateLimit-Burst-Capacity = %q, want 2", resp.Header.Get(HeaderBurstCapacity))
	}
	if !state.RateLimited {
		t.Error("State.RateLimited was not set")
	}
}

func TestStageStampsRemainingHeader(t *testing.T) {
	factory := NewFactory(NewLocal())
	s, err := factory(filterchain.Args{"replenish-rate": "5", "burst-capacity": "5", "key": "path"})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	ctx := context.Background()
	okNext := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Header: make(http.Header)}, nil
	}

	resp, err := s.Invoke(ctx, req, okNext)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.Header.Get(HeaderRemaining) == "" {
		t.Error("successful response missing X-RateLimit-Remaining header")
	}
}
