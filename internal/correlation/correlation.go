// Package correlation implements C9: mint-or-reuse an X-Correlation-ID for
// every request and thread it through context, downstream headers, the
// response, and log records. Grounded on the teacher's flowId filter
// (filters/flowid.go), which mints-or-reuses a similarly-purposed header,
// but simplified to a single always-applied stage instead of a
// user-declarable filter, per spec §4.9's "every request, unconditionally".
package correlation

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/neuragate/neuragate/internal/filterchain"
)

// Header is the correlation id header name, both accepted on inbound
// requests and echoed on outbound responses.
const Header = "X-Correlation-ID"

// Filter runs ahead of route resolution, outside the compiled route's own
// chain, mirroring the original's HIGHEST_PRECEDENCE CorrelationIdFilter.
type Filter struct {
	trustedProxies   []*net.IPNet
	sensitiveHeaders []*regexp.Regexp
}

// WithSensitiveHeaders configures the header name patterns redacted out of
// the per-request debug log line Apply emits - an operator-controlled
// denylist for things like Authorization or API keys that otherwise leak
// into logs verbatim.
func (f *Filter) WithSensitiveHeaders(patterns []*regexp.Regexp) *Filter {
	f.sensitiveHeaders = patterns
	return f
}

// New builds a Filter that only honors an inbound X-Forwarded-For header
// when the immediate peer address falls within one of trustedCIDRs -
// otherwise a spoofed header from an untrusted client would poison
// telemetry and rate-limit keying alike. Malformed CIDRs are skipped. With
// no valid trustedCIDRs at all, every peer is trusted and X-Forwarded-For is
// always honored.
func New(trustedCIDRs ...string) *Filter {
	f := &Filter{}
	for _, c := range trustedCIDRs {
		if _, network, err := net.ParseCIDR(c); err == nil {
			f.trustedProxies = append(f.trustedProxies, network)
		}
	}
	return f
}

// Apply mints or reuses the correlation id, stores it on the request state,
// propagates it to the upstream request header, and returns a
// logrus.Entry pre-tagged with it for the rest of this request's log
// lines.
func (f *Filter) Apply(ctx context.Context, req *http.Request) (context.Context, *log.Entry) {
	id := req.Header.Get(Header)
	if id == "" {
		id = uuid.NewString()
	}
	req.Header.Set(Header, id)

	ctx, state := filterchain.WithState(ctx)
	state.CorrelationID = id
	state.ClientIP = f.clientIP(req)

	entry := log.WithField("correlation_id", id)
	entry.WithField("headers", f.redactedHeaders(req.Header)).Debug("request received")
	return ctx, entry
}

// redactedHeaders returns a flattened copy of header with any name matching
// a configured sensitive pattern replaced by a fixed placeholder, so debug
// logs never carry credentials verbatim.
func (f *Filter) redactedHeaders(header http.Header) map[string]string {
	out := make(map[string]string, len(header))
	for name, values := range header {
		if f.headerSensitive(name) {
			out[name] = "REDACTED"
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

func (f *Filter) headerSensitive(name string) bool {
	for _, pattern := range f.sensitiveHeaders {
		if pattern.MatchString(name) {
			return true
		}
	}
	return false
}

// Echo sets the correlation id header on the outbound response, so the
// client sees the same id whether it supplied one or the gateway minted
// it.
func Echo(resp *http.Response, id string) {
	if resp == nil {
		return
	}
	if resp.Header == nil {
		resp.Header = make(http.Header)
	}
	resp.Header.Set(Header, id)
}

func (f *Filter) clientIP(req *http.Request) string {
	if f.peerTrusted(req.RemoteAddr) {
		if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
			if first, _, ok := strings.Cut(xff, ","); ok {
				return strings.TrimSpace(first)
			}
			return strings.TrimSpace(xff)
		}
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

func (f *Filter) peerTrusted(remoteAddr string) bool {
	if len(f.trustedProxies) == 0 {
		return true
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, network := range f.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
