package ratelimit

import (
	"context"
	"testing"
)

func TestLocalAllowsUpToBurst(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := l.Allow(ctx, "k", 1, 5)
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed within burst", i)
		}
	}

	res, err := l.Allow(ctx, "k", 1, 5)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if res.Allowed {
		t.Error("request beyond burst should be denied")
	}
	if res.RetryAfter <= 0 {
		t.Error("denied result should report a positive RetryAfter")
	}
}

func TestLocalBucketsAreIndependent(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := l.Allow(ctx, "a", 1, 3); err != nil {
			t.Fatalf("Allow: %v", err)
		}
	}
	res, err := l.Allow(ctx, "b", 1, 3)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if !res.Allowed {
		t.Error("a separate key should have its own untouched bucket")
	}
}
