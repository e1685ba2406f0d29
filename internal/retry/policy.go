package retry

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/neuragate/neuragate/internal/gatewayerr"
)

// Policy gates whether a given attempt's outcome may be retried, per spec
// §4.5: a whitelist of HTTP methods, a whitelist of response statuses, and
// the error-kind taxonomy's own Retryable() for transport-level failures.
type Policy struct {
	MaxAttempts int
	Methods     map[string]struct{}
	Statuses    map[int]struct{}
}

func ParsePolicy(maxAttempts int, methodsCSV, statusesCSV string) Policy {
	p := Policy{
		MaxAttempts: maxAttempts,
		Methods:     make(map[string]struct{}),
		Statuses:    make(map[int]struct{}),
	}
	for _, m := range strings.Split(methodsCSV, ",") {
		m = strings.TrimSpace(m)
		if m != "" {
			p.Methods[strings.ToUpper(m)] = struct{}{}
		}
	}
	for _, s := range strings.Split(statusesCSV, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if code, err := strconv.Atoi(s); err == nil {
			p.Statuses[code] = struct{}{}
		}
	}
	return p
}

// AllowsMethod reports whether method is eligible for retry at all. A
// non-idempotent method outside the whitelist never retries regardless of
// the response it received.
func (p Policy) AllowsMethod(method string) bool {
	if len(p.Methods) == 0 {
		return true
	}
	_, ok := p.Methods[strings.ToUpper(method)]
	return ok
}

// ShouldRetry reports whether the outcome of one attempt (resp, err)
// warrants another attempt.
func (p Policy) ShouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		return gatewayerr.KindOf(err).Retryable()
	}
	if resp == nil {
		return false
	}
	if len(p.Statuses) == 0 {
		return resp.StatusCode >= http.StatusInternalServerError
	}
	_, ok := p.Statuses[resp.StatusCode]
	return ok
}
