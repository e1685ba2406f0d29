// Package filterchain implements the around-advice filter chain contract
// described in spec §9: each Stage wraps the next handler, runs logic
// before invoking it, and observes the outcome on the way back out. This is
// the Go rendition of the teacher's reactive Request/Response filter pair,
// collapsed into a single call/return since Go already expresses the wrap
// naturally.
package filterchain

import (
	"context"
	"net/http"
)

// Handler performs the next step of the chain and returns the response it
// produced, or an error (see package gatewayerr for the taxonomy).
type Handler func(ctx context.Context, req *http.Request) (*http.Response, error)

// Stage is one link of a compiled route's filter chain.
type Stage interface {
	// Name is the filter name from the route definition, used for logging
	// and for matching a Retry/CircuitBreaker/RequestRateLimiter default
	// injection check in the compiler.
	Name() string

	// Invoke runs this stage's before/after logic around next.
	Invoke(ctx context.Context, req *http.Request, next Handler) (*http.Response, error)
}

// Chain is an ordered, immutable sequence of stages terminated by a sink
// (the proxy engine, or a shunt such as the fallback router). Building a
// Chain is pure and never touches the network, per spec §4.2.
type Chain struct {
	stages []Stage
	sink   Handler
}

func New(sink Handler, stages ...Stage) *Chain {
	return &Chain{stages: stages, sink: sink}
}

// Stages returns the ordered stage list, outermost first. Used by tests
// asserting the RateLimiter → Retry → CircuitBreaker → user-filters → Proxy
// contract of spec §4.2.
func (c *Chain) Stages() []Stage {
	return c.stages
}

// Run executes the full chain for one request.
func (c *Chain) Run(ctx context.Context, req *http.Request) (*http.Response, error) {
	h := c.sink
	for i := len(c.stages) - 1; i >= 0; i-- {
		stage := c.stages[i]
		next := h
		h = func(ctx context.Context, req *http.Request) (*http.Response, error) {
			return stage.Invoke(ctx, req, next)
		}
	}
	return h(ctx, req)
}
