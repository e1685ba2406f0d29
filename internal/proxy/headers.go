package proxy

import "net/http"

// hopHeaders are stripped when forwarding a request or response, per
// RFC 7230 §6.1 - copied from the teacher's proxy.hopHeaders
// (proxy/proxy.go) verbatim, since the set is a standard, not something
// that varies by gateway.
var hopHeaders = map[string]bool{
	"Te":                  true,
	"Connection":          true,
	"Proxy-Connection":    true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

func cloneHeaderExcludingHopByHop(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, vv := range h {
		if hopHeaders[k] {
			continue
		}
		cp := make([]string, len(vv))
		copy(cp, vv)
		out[k] = cp
	}
	return out
}
