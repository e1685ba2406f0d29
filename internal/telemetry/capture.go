package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/neuragate/neuragate/internal/filterchain"
	"github.com/neuragate/neuragate/internal/gatewayerr"
)

// Sink is anything that accepts a finished Event without blocking the
// caller - implemented by *Publisher, and by a no-op in tests.
type Sink interface {
	Submit(e Event)
}

// Capture wraps the whole filter chain, per spec §4.10: it measures
// latency from entry to exit, reads back the resilience flags the chain
// recorded on the request's State, and hands the finished Event to sink
// without making the response write wait on it.
type Capture struct {
	sink Sink
}

func NewCapture(sink Sink) *Capture {
	return &Capture{sink: sink}
}

// Wrap returns a filterchain.Handler that runs next and records telemetry
// around it. routeID is read after resolution completes (it's empty for
// unmatched requests).
func (c *Capture) Wrap(next filterchain.Handler) filterchain.Handler {
	return func(ctx context.Context, req *http.Request) (*http.Response, error) {
		start := time.Now()
		enteredAt := start

		resp, err := func() (resp *http.Response, err error) {
			defer func() {
				if r := recover(); r != nil {
					resp, err = nil, gatewayerr.New(gatewayerr.KindInternal, fmt.Errorf("panic: %v", r))
				}
			}()
			return next(ctx, req)
		}()

		ev := Event{
			Path:          req.URL.Path,
			Method:        req.Method,
			LatencyMS:     time.Since(start).Milliseconds(),
			Timestamp:     enteredAt,
			ClientIP:      req.RemoteAddr,
			UserAgent:     req.UserAgent(),
			CorrelationID: req.Header.Get("X-Correlation-ID"),
		}

		if state := filterchain.StateFrom(ctx); state != nil {
			ev.RouteID = state.RouteID
			ev.RateLimited = state.RateLimited
			ev.CircuitBreakerTriggered = state.CircuitBreakerOpened
			ev.RetryCount = state.RetryCount
			if state.ClientIP != "" {
				ev.ClientIP = state.ClientIP
			}
			if ev.CorrelationID == "" {
				ev.CorrelationID = state.CorrelationID
			}
		}

		switch {
		case err != nil:
			ev.Status = gatewayerr.Status(err)
			ev.Exception = gatewayerr.KindOf(err).String()
		case resp != nil:
			ev.Status = resp.StatusCode
		default:
			ev.Status = http.StatusInternalServerError
		}

		c.sink.Submit(ev)
		return resp, err
	}
}
