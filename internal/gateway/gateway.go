// Package gateway wires C9 (correlation) -> C10 (telemetry capture) -> C3
// (route resolution) -> a compiled route's own filter chain into the single
// http.Handler the process listens with, plus the admin, fallback and
// health surfaces mounted alongside it.
package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/neuragate/neuragate/internal/correlation"
	"github.com/neuragate/neuragate/internal/fallback"
	"github.com/neuragate/neuragate/internal/filterchain"
	"github.com/neuragate/neuragate/internal/gatewayerr"
	"github.com/neuragate/neuragate/internal/health"
	"github.com/neuragate/neuragate/internal/routing"
	"github.com/neuragate/neuragate/internal/telemetry"
)

// Gateway is the process's single entrypoint http.Handler, grounded on the
// teacher's proxy.Proxy.ServeHTTP (proxy/proxy.go): resolve, run the
// chain, write the result, never let a panic escape to the client.
type Gateway struct {
	resolver    *routing.Resolver
	correlation *correlation.Filter
	capture     *telemetry.Capture
	admin       http.Handler
	fallback    *fallback.Router
	health      *health.Probe

	mux *http.ServeMux
}

func New(resolver *routing.Resolver, corr *correlation.Filter, capture *telemetry.Capture, admin http.Handler, fb *fallback.Router, probe *health.Probe) *Gateway {
	g := &Gateway{
		resolver:    resolver,
		correlation: corr,
		capture:     capture,
		admin:       admin,
		fallback:    fb,
		health:      probe,
	}

	mux := http.NewServeMux()
	mux.Handle("/admin/", admin)
	mux.HandleFunc("/fallback/", fb.ServeHTTP)
	mux.HandleFunc("/actuator/health", g.serveHealth)
	mux.HandleFunc("/auth/", serveNotFound)
	mux.HandleFunc("/dashboard/", serveNotFound)
	mux.HandleFunc("/", g.serveRoute)
	g.mux = mux

	return g
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	g.mux.ServeHTTP(w, req)
}

func (g *Gateway) serveHealth(w http.ResponseWriter, req *http.Request) {
	report := g.health.Report(req.Context())
	status := http.StatusOK
	if report.Status == "DOWN" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// serveRoute implements the request path of spec §2: C9 mints/reuses the
// correlation id, C10 wraps the whole resolve+run span, C3 resolves a
// route, and the compiled chain runs to completion or to a 404 when
// nothing matches.
func (g *Gateway) serveRoute(w http.ResponseWriter, req *http.Request) {
	ctx, entry := g.correlation.Apply(req.Context(), req)
	req = req.WithContext(ctx)

	handler := g.capture.Wrap(func(ctx context.Context, req *http.Request) (*http.Response, error) {
		route, ok := g.resolver.Resolve(req)
		if !ok {
			return noRouteResponse(), nil
		}
		if state := filterchain.StateFrom(ctx); state != nil {
			state.RouteID = route.Definition.ID
		}
		return route.Chain().Run(ctx, req)
	})

	started := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		writeErrorResponse(w, err, entry, time.Since(started))
		return
	}
	correlation.Echo(resp, req.Header.Get(correlation.Header))
	writeUpstreamResponse(w, resp, entry)
}

// serveNotFound backs the /auth and /dashboard carve-outs of spec §6:
// these paths belong to out-of-scope collaborators, but must never reach
// C3 resolution, so they're mounted ahead of it and answered directly.
func serveNotFound(w http.ResponseWriter, req *http.Request) {
	http.NotFound(w, req)
}

// noRouteResponse implements spec §4.3's "miss: return no route", surfaced
// to the client as a plain 404 - not a *gatewayerr.Error, since an
// unmatched request never reached a filter chain to fail inside.
func noRouteResponse() *http.Response {
	body := io.NopCloser(strings.NewReader("no route matched\n"))
	return &http.Response{StatusCode: http.StatusNotFound, Header: make(http.Header), Body: body}
}

func writeUpstreamResponse(w http.ResponseWriter, resp *http.Response, entry *log.Entry) {
	defer resp.Body.Close()
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		entry.WithError(err).Warn("error streaming response body")
	}
}

func writeErrorResponse(w http.ResponseWriter, err error, entry *log.Entry, elapsed time.Duration) {
	status := gatewayerr.Status(err)
	entry.WithError(err).WithField("status", status).WithField("elapsed", elapsed).Warn("request failed")
	http.Error(w, http.StatusText(status), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
