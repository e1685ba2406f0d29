package retry

import (
	"math/rand"
	"time"
)

// expBackoff computes wait = base * multiplier^(k-1) + jitter, jitter
// uniform in [0, wait/2], per spec §4.5. It implements
// github.com/cenkalti/backoff/v5's BackOff interface so the retry loop in
// stage.go can drive it through backoff.Retry, while keeping the exact
// formula under our own control instead of the library's default
// randomization (which centers jitter around the base interval rather than
// only adding to it).
type expBackoff struct {
	base       time.Duration
	multiplier float64
	max        time.Duration
	attempt    int
}

func newExpBackoff(base time.Duration, multiplier float64, max time.Duration) *expBackoff {
	return &expBackoff{base: base, multiplier: multiplier, max: max}
}

func (b *expBackoff) Reset() {
	b.attempt = 0
}

func (b *expBackoff) NextBackOff() time.Duration {
	b.attempt++
	wait := float64(b.base) * pow(b.multiplier, b.attempt-1)
	if b.max > 0 && wait > float64(b.max) {
		wait = float64(b.max)
	}
	jitter := rand.Float64() * wait / 2
	return time.Duration(wait + jitter)
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}
