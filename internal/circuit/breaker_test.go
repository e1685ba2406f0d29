package circuit

import (
	"testing"
	"time"
)

func times(n int, f func()) {
	for n > 0 {
		f()
		n--
	}
}

func createDone(t *testing.T, success bool, b *Breaker) func() {
	return func() {
		if t.Failed() {
			return
		}
		done, ok := b.Allow()
		if !ok {
			t.Error("breaker is unexpectedly open")
			return
		}
		done(success)
	}
}

func succeed(t *testing.T, b *Breaker) func() { return createDone(t, true, b) }
func fail(t *testing.T, b *Breaker) func()    { return createDone(t, false, b) }

func checkClosed(t *testing.T, b *Breaker) {
	if _, ok := b.Allow(); !ok {
		t.Error("breaker is not closed")
	}
}

func checkOpen(t *testing.T, b *Breaker) {
	if _, ok := b.Allow(); ok {
		t.Error("breaker is not open")
	}
}

func TestDefaultSettingsTable(t *testing.T) {
	cases := []struct {
		name                 string
		wantFailureRate      float64
		wantWindow           int
		wantMinimumCalls     int
		wantWaitDurationOpen time.Duration
	}{
		{"backendService", 0.5, 10, 5, 10 * time.Second},
		{"criticalService", 0.7, 20, 10, 30 * time.Second},
		{"dynamicRoute", 0.6, 15, 5, 15 * time.Second},
		{"anythingElse", 0.6, 15, 5, 15 * time.Second},
	}
	for _, c := range cases {
		s := DefaultSettings(c.name)
		if s.FailureRateThreshold != c.wantFailureRate {
			t.Errorf("%s: failure rate = %v, want %v", c.name, s.FailureRateThreshold, c.wantFailureRate)
		}
		if s.SlidingWindowSize != c.wantWindow {
			t.Errorf("%s: window = %v, want %v", c.name, s.SlidingWindowSize, c.wantWindow)
		}
		if s.MinimumNumberOfCalls != c.wantMinimumCalls {
			t.Errorf("%s: min calls = %v, want %v", c.name, s.MinimumNumberOfCalls, c.wantMinimumCalls)
		}
		if s.WaitDurationInOpen != c.wantWaitDurationOpen {
			t.Errorf("%s: wait duration = %v, want %v", c.name, s.WaitDurationInOpen, c.wantWaitDurationOpen)
		}
	}
}

func TestBreakerOpensOnFailureRate(t *testing.T) {
	s := Settings{
		Name:                   "test",
		FailureRateThreshold:   0.5,
		SlidingWindowSize:      10,
		MinimumNumberOfCalls:   4,
		WaitDurationInOpen:     10 * time.Millisecond,
		PermittedHalfOpenCalls: 2,
	}

	t.Run("new breaker starts closed", func(t *testing.T) {
		b := newBreaker(s)
		checkClosed(t, b)
		if b.State() != StateClosed {
			t.Errorf("state = %v, want CLOSED", b.State())
		}
	})

	t.Run("stays closed below minimum calls", func(t *testing.T) {
		b := newBreaker(s)
		times(s.MinimumNumberOfCalls-1, fail(t, b))
		checkClosed(t, b)
	})

	t.Run("opens once failure rate threshold is reached", func(t *testing.T) {
		b := newBreaker(s)
		times(2, fail(t, b))
		times(2, succeed(t, b))
		checkOpen(t, b)
		if b.State() != StateOpen {
			t.Errorf("state = %v, want OPEN", b.State())
		}
		if b.OpenedAt().IsZero() {
			t.Error("OpenedAt was not recorded")
		}
	})

	t.Run("transitions to half open after wait duration, closes on success", func(t *testing.T) {
		b := newBreaker(s)
		times(2, fail(t, b))
		times(2, succeed(t, b))
		checkOpen(t, b)

		time.Sleep(s.WaitDurationInOpen * 2)
		times(s.PermittedHalfOpenCalls, succeed(t, b))
		checkClosed(t, b)
	})

	t.Run("half open reopens on a failure", func(t *testing.T) {
		b := newBreaker(s)
		times(2, fail(t, b))
		times(2, succeed(t, b))
		checkOpen(t, b)

		time.Sleep(s.WaitDurationInOpen * 2)
		done, ok := b.Allow()
		if !ok {
			t.Fatal("breaker unexpectedly open after wait duration")
		}
		done(false)
		checkOpen(t, b)
	})
}

func TestBreakerName(t *testing.T) {
	b := newBreaker(DefaultSettings("criticalService"))
	if b.Name() != "criticalService" {
		t.Errorf("Name() = %q, want %q", b.Name(), "criticalService")
	}
}
