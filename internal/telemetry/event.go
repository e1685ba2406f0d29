// Package telemetry implements C10 (capture) and C11 (publish): every
// request produces one Event, handed off non-blockingly to a Publisher
// that delivers it to a message bus under three topics. Grounded on the
// original Java GatewayTelemetry/TelemetryPublisher, translated from
// Spring's Kafka template to github.com/twmb/franz-go's kgo.Client, an
// out-of-pack client chosen as the idiomatic Go Kafka library.
package telemetry

import "time"

// Event is the wire schema of spec §3's TelemetryEvent, JSON-encoded
// verbatim as the value of every message published to gateway-telemetry
// and gateway-errors.
type Event struct {
	RouteID                 string    `json:"route-id,omitempty"`
	Path                    string    `json:"path"`
	Method                  string    `json:"method"`
	Status                  int       `json:"status,omitempty"`
	LatencyMS               int64     `json:"latency-ms"`
	Timestamp               time.Time `json:"timestamp"`
	CorrelationID           string    `json:"correlation-id"`
	ClientIP                string    `json:"client-ip"`
	UserAgent               string    `json:"user-agent,omitempty"`
	RateLimited             bool      `json:"rate-limited"`
	CircuitBreakerTriggered bool      `json:"circuit-breaker-triggered"`
	RetryCount              int       `json:"retry-count"`
	Exception               string    `json:"exception,omitempty"`
}

// RouteChanged is the value schema for gateway-routes, populated whenever
// C1 emits a route-changed event.
type RouteChanged struct {
	RouteID   string    `json:"route-id"`
	Operation string    `json:"operation"` // "updated" (any Put) or "deleted"
	Timestamp time.Time `json:"timestamp"`
}

func (e Event) isError() bool {
	return e.Status >= 500 || e.Exception != ""
}
