package circuit

import (
	"sync"
	"time"
)

// atomicTime is a tiny mutex-guarded time.Time - gobreaker's OnStateChange
// callback and Breaker.OpenedAt() can race, and time.Time isn't safe to
// store in an atomic.Value across goroutines without a consistent type.
type atomicTime struct {
	mu sync.Mutex
	t  time.Time
}

func (a *atomicTime) set(t time.Time) {
	a.mu.Lock()
	a.t = t
	a.mu.Unlock()
}

func (a *atomicTime) get() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.t
}
