// Package circuit implements C6: a per-name circuit breaker with the
// CLOSED/OPEN/HALF_OPEN state machine of spec §4.6, built on
// github.com/sony/gobreaker's TwoStepCircuitBreaker the way the teacher
// (zalando/skipper, circuit/gobreaker.go) wraps the same library for its own
// rate-based breaker: gobreaker's ReadyToTrip/MaxRequests/Timeout map
// directly onto failure-rate-threshold/permitted-number-of-calls-in-
// half-open-state/wait-duration-in-open-state.
package circuit

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// errCallFailed is reported to gobreaker's TwoStepCircuitBreaker when the
// caller marks an outcome as failed; only its non-nil-ness is observed.
var errCallFailed = errors.New("call failed")

// State mirrors spec §3's BreakerState.state enum.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Settings configures one named breaker, per the table in spec §4.6.
type Settings struct {
	Name                   string
	FailureRateThreshold   float64 // e.g. 0.6 for 60%
	SlidingWindowSize      int     // count-based window, e.g. 15
	MinimumNumberOfCalls   int     // e.g. 5
	WaitDurationInOpen     time.Duration
	PermittedHalfOpenCalls int
}

// DefaultSettings returns the recommended defaults for the three named
// instances of spec §4.6's table.
func DefaultSettings(name string) Settings {
	switch name {
	case "backendService":
		return Settings{Name: name, FailureRateThreshold: 0.5, WaitDurationInOpen: 10 * time.Second, SlidingWindowSize: 10, MinimumNumberOfCalls: 5, PermittedHalfOpenCalls: 3}
	case "criticalService":
		return Settings{Name: name, FailureRateThreshold: 0.7, WaitDurationInOpen: 30 * time.Second, SlidingWindowSize: 20, MinimumNumberOfCalls: 10, PermittedHalfOpenCalls: 3}
	default:
		return Settings{Name: name, FailureRateThreshold: 0.6, WaitDurationInOpen: 15 * time.Second, SlidingWindowSize: 15, MinimumNumberOfCalls: 5, PermittedHalfOpenCalls: 3}
	}
}

// slidingWindow is a bounded, count-based circular buffer of the last N
// call outcomes, per spec §3's BreakerState data model - gobreaker's own
// Counts accumulate cumulatively since the last state transition, which
// isn't the same thing, so ReadyToTrip is driven off this instead.
type slidingWindow struct {
	mu       sync.Mutex
	outcomes []bool // true = failure, at each ring slot
	head     int
	filled   int
	failures int
}

func newSlidingWindow(size int) *slidingWindow {
	if size < 1 {
		size = 1
	}
	return &slidingWindow{outcomes: make([]bool, size)}
}

// record adds one outcome to the window, evicting the oldest once full.
func (w *slidingWindow) record(success bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	failed := !success
	evicting := w.filled == len(w.outcomes)
	if evicting && w.outcomes[w.head] {
		w.failures--
	}
	w.outcomes[w.head] = failed
	if failed {
		w.failures++
	}
	if !evicting {
		w.filled++
	}
	w.head = (w.head + 1) % len(w.outcomes)
}

// stats returns the number of outcomes currently in the window and how
// many of them were failures.
func (w *slidingWindow) stats() (total, failures int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.filled, w.failures
}

// Breaker is a single named circuit breaker instance.
type Breaker struct {
	settings Settings
	window   *slidingWindow
	gb       *gobreaker.TwoStepCircuitBreaker[any]
	openedAt atomicTime
}

func newBreaker(s Settings) *Breaker {
	b := &Breaker{settings: s, window: newSlidingWindow(s.SlidingWindowSize)}
	b.gb = gobreaker.NewTwoStepCircuitBreaker[any](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: uint32(s.PermittedHalfOpenCalls),
		Interval:    0, // state transitions reset gobreaker's own counts; ours is the window
		Timeout:     s.WaitDurationInOpen,
		ReadyToTrip: func(gobreaker.Counts) bool {
			total, failures := b.window.stats()
			if total < s.MinimumNumberOfCalls {
				return false
			}
			rate := float64(failures) / float64(total)
			return rate >= s.FailureRateThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				b.openedAt.set(time.Now())
			}
		},
	})
	return b
}

// Allow reports whether a call may proceed. When it returns permitted=false,
// the breaker is OPEN and the caller must short-circuit to the fallback
// router without contacting the upstream, per spec §4.6/§4.7. When
// permitted=true, the caller must invoke done(success) exactly once with the
// outcome of its attempt.
func (b *Breaker) Allow() (done func(success bool), permitted bool) {
	d, err := b.gb.Allow()
	if err != nil {
		return nil, false
	}
	return func(success bool) {
		b.window.record(success)
		if success && b.State() == StateClosed {
			// gobreaker only consults ReadyToTrip on a failure, so a success
			// that leaves the window at or above the threshold is reported as
			// a failure to let ReadyToTrip open the breaker.
			total, failures := b.window.stats()
			if total >= b.settings.MinimumNumberOfCalls && float64(failures)/float64(total) >= b.settings.FailureRateThreshold {
				d(errCallFailed)
				return
			}
		}
		if success {
			d(nil)
		} else {
			d(errCallFailed)
		}
	}, true
}

// State returns the current CLOSED/OPEN/HALF_OPEN state.
func (b *Breaker) State() State {
	return fromGobreaker(b.gb.State())
}

// OpenedAt returns the timestamp of the most recent CLOSED/HALF_OPEN→OPEN
// transition, or the zero time if the breaker has never opened.
func (b *Breaker) OpenedAt() time.Time {
	return b.openedAt.get()
}

// Name returns the breaker's configured name.
func (b *Breaker) Name() string {
	return b.settings.Name
}
