package retry

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	log "github.com/sirupsen/logrus"

	"github.com/neuragate/neuragate/internal/filterchain"
)

const (
	defaultBase       = 500 * time.Millisecond
	defaultMultiplier = 2.0
	defaultMax        = 2 * time.Second
)

type stage struct {
	policy Policy
}

// NewFactory returns the Factory registered under "Retry". Expected args:
// "retries" (max attempts beyond the first), "statuses" and "methods"
// (comma-separated whitelists, per spec §4.5).
func NewFactory() filterchain.Factory {
	return func(args filterchain.Args) (filterchain.Stage, error) {
		maxAttempts := 3
		if v, ok := args["retries"]; ok {
			if n, err := parseInt(v); err == nil {
				maxAttempts = n
			}
		}
		policy := ParsePolicy(maxAttempts, args["methods"], args["statuses"])
		return &stage{policy: policy}, nil
	}
}

func parseInt(s string) (int, error) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errNotANumber
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}

var errNotANumber = &notANumberError{}

type notANumberError struct{}

func (*notANumberError) Error() string { return "not a number" }

func (s *stage) Name() string { return "Retry" }

// Invoke implements C5: replay next up to policy.MaxAttempts times,
// governed by the exponential-backoff-with-jitter formula of spec §4.5.
// Non-idempotent methods outside the whitelist, and non-retryable error
// kinds or statuses, are returned immediately on the first attempt.
func (s *stage) Invoke(ctx context.Context, req *http.Request, next filterchain.Handler) (*http.Response, error) {
	if !s.policy.AllowsMethod(req.Method) {
		return next(ctx, req)
	}

	var bodyBytes []byte
	if req.Body != nil && req.Body != http.NoBody {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
	}

	state := filterchain.StateFrom(ctx)
	attempt := 0

	operation := func() (*http.Response, error) {
		if attempt > 0 {
			if state != nil {
				state.RetryCount = attempt
			}
			log.WithField("attempt", attempt).WithField("route_id", routeID(state)).Debug("retrying request")
		}
		attempt++

		r := req
		if bodyBytes != nil {
			r = req.Clone(ctx)
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		resp, err := next(ctx, r)
		if !s.policy.ShouldRetry(resp, err) {
			if err != nil {
				return nil, backoff.Permanent(err)
			}
			return resp, nil
		}
		if err != nil {
			return nil, err
		}
		return resp, errRetryableStatus
	}

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(newExpBackoff(defaultBase, defaultMultiplier, defaultMax)),
		backoff.WithMaxTries(uint(maxTries(s.policy.MaxAttempts))),
	)
	if err == errRetryableStatus {
		return resp, nil
	}
	return resp, err
}

func maxTries(maxAttempts int) int {
	if maxAttempts < 1 {
		return 1
	}
	return maxAttempts + 1
}

func routeID(state *filterchain.State) string {
	if state == nil {
		return ""
	}
	return state.RouteID
}

// errRetryableStatus signals a retryable non-2xx response back through
// backoff.Retry's error channel without discarding the response it already
// produced - backoff.Retry only returns its last successful T on a nil
// error, so a retryable response is carried as the (T, error) pair and
// unwrapped by the caller above.
var errRetryableStatus = retryableStatusError{}

type retryableStatusError struct{}

func (retryableStatusError) Error() string { return "retryable response status" }
