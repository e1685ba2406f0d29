package proxy

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/neuragate/neuragate/internal/filterchain"
	"github.com/neuragate/neuragate/internal/gatewayerr"
)

// Engine performs the upstream call for a CompiledRoute's proxy sink -
// the bottom of every filter chain (spec §2's control-flow diagram ends
// every path in either C8 or C7).
type Engine struct {
	client         *http.Client
	defaultHeaders map[string]string
}

func NewEngine(transport *http.Transport) *Engine {
	return &Engine{client: &http.Client{Transport: transport}}
}

// WithDefaultHeaders sets headers stamped onto every outgoing request
// after route and filter headers are applied, e.g. a shared API key or
// a fleet-wide "X-Gateway-Version" tag operators configure once for all
// backends.
func (e *Engine) WithDefaultHeaders(headers map[string]string) *Engine {
	e.defaultHeaders = headers
	return e
}

// Sink builds a filterchain.Handler bound to backend and an optional
// stripPrefix, suitable for passing as the chain's terminal sink.
func (e *Engine) Sink(backend *url.URL, stripPrefix string) filterchain.Handler {
	return func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return e.Forward(ctx, req, backend, stripPrefix)
	}
}

// Forward implements C8: join backend and the (possibly prefix-stripped)
// request path, copy headers minus hop-by-hop, stream the body, and
// classify any transport failure as a retryable error.
func (e *Engine) Forward(ctx context.Context, req *http.Request, backend *url.URL, stripPrefix string) (*http.Response, error) {
	target := *backend
	target.Path = joinPath(backend.Path, stripPath(req.URL.Path, stripPrefix))
	target.RawQuery = req.URL.RawQuery

	outReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), req.Body)
	if err != nil {
		return nil, gatewayerr.New(gatewayerr.KindInternal, err)
	}
	outReq.Header = cloneHeaderExcludingHopByHop(req.Header)
	outReq.ContentLength = req.ContentLength
	outReq.Host = backend.Host
	for k, v := range e.defaultHeaders {
		outReq.Header.Set(k, v)
	}

	resp, err := e.client.Do(outReq)
	if err != nil {
		return nil, gatewayerr.New(gatewayerr.KindRetryableTransport, err)
	}
	return resp, nil
}

func stripPath(path, prefix string) string {
	if prefix == "" {
		return path
	}
	if trimmed := strings.TrimPrefix(path, prefix); trimmed != path {
		if trimmed == "" {
			return "/"
		}
		return trimmed
	}
	return path
}

func joinPath(base, path string) string {
	base = strings.TrimSuffix(base, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
