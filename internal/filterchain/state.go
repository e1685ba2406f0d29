package filterchain

import (
	"context"
)

type stateKey struct{}

// State is the per-request state bag threaded through the chain via the
// request context, mirroring the teacher's proxy.context.stateBag but typed:
// the fields are exactly what C10 (telemetry capture) needs to read back out
// on the way out of the chain.
type State struct {
	CorrelationID        string
	RouteID              string
	RateLimited          bool
	CircuitBreakerOpened bool
	RetryCount           int
	ClientIP             string
}

// WithState attaches a fresh State to ctx and returns the derived context
// together with the State pointer, so callers can mutate it in place as the
// request flows through the chain.
func WithState(ctx context.Context) (context.Context, *State) {
	s := &State{}
	return context.WithValue(ctx, stateKey{}, s), s
}

// StateFrom returns the State attached to ctx, or nil if none is present.
func StateFrom(ctx context.Context) *State {
	s, _ := ctx.Value(stateKey{}).(*State)
	return s
}
