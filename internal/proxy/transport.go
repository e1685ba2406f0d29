// Package proxy implements C8: the upstream HTTP call, with connection
// pooling and timeouts grounded on the teacher's net.NewHTTPRoundTripper
// (net/httpclient.go) and its header handling grounded on the teacher's
// proxy.proxy (proxy/proxy.go hopHeaders/mapRequest).
package proxy

import (
	"context"
	"net"
	"net/http"
	"time"
)

// TransportOptions configures the shared *http.Transport, trimmed down
// from the teacher's net.Options to the knobs this gateway exposes in
// config - the rest keep Go's http.Transport defaults.
type TransportOptions struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	ConnectTimeout      time.Duration
	ReadTimeout         time.Duration
	IdleConnTimeout     time.Duration
}

// DefaultTransportOptions matches spec §4.8's stated connect/read timeout
// defaults.
func DefaultTransportOptions() TransportOptions {
	return TransportOptions{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		ConnectTimeout:      2 * time.Second,
		ReadTimeout:         10 * time.Second,
		IdleConnTimeout:     90 * time.Second,
	}
}

// NewTransport builds the *http.Transport used for every upstream call,
// pooling connections per host the way the teacher's NewHTTPRoundTripper
// does, periodically sweeping idle connections in the background until
// quit is closed.
func NewTransport(opts TransportOptions, quit <-chan struct{}) *http.Transport {
	dialer := &net.Dialer{Timeout: opts.ConnectTimeout}

	tr := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
		MaxIdleConns:          opts.MaxIdleConns,
		MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
		IdleConnTimeout:       opts.IdleConnTimeout,
		ResponseHeaderTimeout: opts.ReadTimeout,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	go func() {
		ticker := time.NewTicker(opts.IdleConnTimeout)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				tr.CloseIdleConnections()
			case <-quit:
				return
			}
		}
	}()

	return tr
}
