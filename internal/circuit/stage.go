package circuit

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/neuragate/neuragate/internal/filterchain"
)

// FallbackRouter dispatches to one of the canned fallback responses of C7
// when a breaker is open. Declared here rather than imported from package
// fallback to keep circuit free of a dependency on it; internal/fallback
// implements this interface and is wired in by cmd/neuragate.
type FallbackRouter interface {
	Route(ctx context.Context, uri string, req *http.Request) (*http.Response, error)
}

// stage is the filterchain.Stage produced for a route's "CircuitBreaker"
// filter entry.
type stage struct {
	name        string
	breaker     *Breaker
	fallbackURI string
	fallback    FallbackRouter
}

// NewFactory returns the Factory to register under the name "CircuitBreaker"
// (spec §4.2's default injection uses this exact name). Expected args:
// "name" (breaker name, defaulting settings from DefaultSettings unless
// overrides supplies one) and "fallbackUri" (path routed to on open).
func NewFactory(registry *Registry, fallback FallbackRouter, overrides map[string]Settings) filterchain.Factory {
	return func(args filterchain.Args) (filterchain.Stage, error) {
		name := args["name"]
		if name == "" {
			name = "dynamicRoute"
		}
		fallbackURI := args["fallbackUri"]
		if fallbackURI == "" {
			fallbackURI = "/fallback/message"
		}

		settings, ok := overrides[name]
		if !ok {
			settings = DefaultSettings(name)
		}
		if wait, ok := args["waitDurationInOpen"]; ok {
			if d, err := time.ParseDuration(wait); err == nil {
				settings.WaitDurationInOpen = d
			}
		}
		if thresh, ok := args["failureRateThreshold"]; ok {
			if f, err := strconv.ParseFloat(thresh, 64); err == nil {
				settings.FailureRateThreshold = f
			}
		}

		return &stage{
			name:        "CircuitBreaker",
			breaker:     registry.Get(settings),
			fallbackURI: fallbackURI,
			fallback:    fallback,
		}, nil
	}
}

func (s *stage) Name() string { return s.name }

// Invoke implements spec §4.6/§4.7: when the breaker denies the call it
// routes to the configured fallback without touching next at all; otherwise
// it runs next and reports the outcome back to the breaker. A response with
// a 5xx status from next counts as a failure for breaker-trip purposes even
// though it isn't itself a Go error, matching the Java implementation's
// treatment of 5xx responses as circuit failures.
func (s *stage) Invoke(ctx context.Context, req *http.Request, next filterchain.Handler) (*http.Response, error) {
	done, permitted := s.breaker.Allow()
	if !permitted {
		if st := filterchain.StateFrom(ctx); st != nil {
			st.CircuitBreakerOpened = true
		}
		return s.fallback.Route(ctx, s.fallbackURI, req)
	}

	resp, err := next(ctx, req)
	success := err == nil && resp != nil && resp.StatusCode < 500
	done(success)
	return resp, err
}
