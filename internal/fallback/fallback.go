// Package fallback implements C7: the three local endpoints a circuit
// breaker routes to when it is open, and the in-process Router the
// CircuitBreaker filter stage calls directly without a network round trip.
package fallback

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// Body is the JSON shape returned by every fallback endpoint.
type Body struct {
	Status    int    `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Reason    string `json:"reason"`
	Service   string `json:"service,omitempty"`
	Severity  string `json:"severity,omitempty"`
}

const (
	PathMessage  = "/fallback/message"
	PathBackend  = "/fallback/backend"
	PathCritical = "/fallback/critical"
)

// Router dispatches a fallback URI to its canned response, synchronously
// and without ever invoking C8 - the three paths exist so both real HTTP
// clients (hitting them directly) and the CircuitBreaker filter (calling
// Route in-process) get the same answer.
type Router struct {
	now func() time.Time
}

func NewRouter() *Router {
	return &Router{now: time.Now}
}

// Route implements circuit.FallbackRouter.
func (r *Router) Route(_ context.Context, uri string, _ *http.Request) (*http.Response, error) {
	switch uri {
	case PathBackend:
		return r.response(Body{Reason: "circuit-open", Service: "backend"}), nil
	case PathCritical:
		return r.response(Body{Reason: "circuit-open", Service: "critical", Severity: "critical"}), nil
	default:
		return r.response(Body{Reason: "circuit-open"}), nil
	}
}

func (r *Router) response(b Body) *http.Response {
	b.Status = http.StatusServiceUnavailable
	if b.Message == "" {
		b.Message = "service temporarily unavailable"
	}
	b.Timestamp = r.now().UTC().Format(time.RFC3339)

	payload, _ := json.Marshal(b)
	header := make(http.Header)
	header.Set("Content-Type", "application/json")

	return &http.Response{
		StatusCode:    http.StatusServiceUnavailable,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(payload)),
		ContentLength: int64(len(payload)),
	}
}

// ServeHTTP lets the three paths also be registered directly on the
// gateway's mux for clients that hit them without going through a breaker.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	resp, _ := r.Route(req.Context(), req.URL.Path, req)
	for k, v := range resp.Header {
		w.Header()[k] = v
	}
	w.WriteHeader(resp.StatusCode)
	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	w.Write(buf.Bytes())
}
