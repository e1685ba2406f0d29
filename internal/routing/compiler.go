package routing

import (
	"fmt"
	"net/url"

	"github.com/neuragate/neuragate/internal/filterchain"
	"github.com/neuragate/neuragate/internal/gatewayerr"
)

const (
	filterRateLimiter    = "RequestRateLimiter"
	filterRetry          = "Retry"
	filterCircuitBreaker = "CircuitBreaker"
)

// SinkFactory builds the terminal handler of a compiled route's chain,
// bound to that route's own backend and strip-prefix setting - each route
// proxies to a different upstream, so the sink can't be a single shared
// handler the way the filter registry is a single shared map.
type SinkFactory func(backend *url.URL, stripPrefix string) filterchain.Handler

// Compiler turns RouteDefinitions into CompiledRoutes, per C2. It never
// touches the network: building a snapshot is pure, so it can run
// synchronously on every Route Store change notification.
type Compiler struct {
	registry    *filterchain.Registry
	sinkFactory SinkFactory
}

func NewCompiler(registry *filterchain.Registry, sinkFactory SinkFactory) *Compiler {
	return &Compiler{registry: registry, sinkFactory: sinkFactory}
}

// MetaStripPrefix names the metadata key holding the path prefix to strip
// from the incoming request before joining it onto the backend URI.
const MetaStripPrefix = "strip-prefix"

// Compile builds one CompiledRoute from def, injecting the default
// resilience filters described in spec §4.2 when the definition doesn't
// declare its own.
func (c *Compiler) Compile(def Definition) (*CompiledRoute, error) {
	if err := def.Validate(); err != nil {
		return nil, gatewayerr.New(gatewayerr.KindConfig, err)
	}

	backend, err := url.Parse(def.URI)
	if err != nil || (backend.Scheme != "http" && backend.Scheme != "https") {
		return nil, gatewayerr.New(gatewayerr.KindConfig, errBadScheme)
	}

	m, err := buildMatcher(def.Predicates)
	if err != nil {
		return nil, gatewayerr.New(gatewayerr.KindConfig, err)
	}

	entries := injectDefaults(def)

	stages := make([]filterchain.Stage, 0, len(entries))
	for _, e := range entries {
		stage, err := c.registry.Build(e.Name, filterchain.Args(e.Args))
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", def.ID, err)
		}
		stages = append(stages, stage)
	}

	sink := c.sinkFactory(backend, def.Metadata[MetaStripPrefix])

	return &CompiledRoute{
		Definition: def,
		Backend:    backend,
		Hash:       contentHash(def),
		matcher:    m,
		chain:      filterchain.New(sink, stages...),
	}, nil
}

// injectDefaults implements spec §4.2's default injection policy and fixes
// the final chain order (RateLimiter → Retry → CircuitBreaker → user
// filters). User-declared filters of these three kinds keep their own args
// but are moved into that fixed position, wherever the definition places
// them; only a missing kind is filled in with defaults, which is why the loop
// below partitions the declared filters instead of always prepending. If a
// kind is declared more than once, only its last entry is kept.
func injectDefaults(def Definition) []FilterEntry {
	var (
		rateLimiter *FilterEntry
		retry       *FilterEntry
		breaker     *FilterEntry
		userFilters []FilterEntry
	)

	for _, f := range def.Filters {
		switch f.Name {
		case filterRateLimiter:
			fc := f
			rateLimiter = &fc
		case filterRetry:
			fc := f
			retry = &fc
		case filterCircuitBreaker:
			fc := f
			breaker = &fc
		default:
			userFilters = append(userFilters, f)
		}
	}

	if rateLimiter == nil && def.metaBool(MetaRateLimitEnabled) {
		rateLimiter = &FilterEntry{
			Name: filterRateLimiter,
			Args: map[string]string{
				"replenish-rate": "10",
				"burst-capacity": "20",
				"key":            "client-ip",
			},
		}
	}

	if retry == nil {
		retry = &FilterEntry{
			Name: filterRetry,
			Args: map[string]string{
				"retries":  "3",
				"statuses": "502,503",
				"methods":  "GET,POST,PUT,DELETE",
			},
		}
	}

	if breaker == nil {
		name := "dynamicRoute"
		fallback := "/fallback/message"
		if def.metaBool(MetaCritical) {
			name = "criticalService"
			fallback = "/fallback/critical"
		}
		breaker = &FilterEntry{
			Name: filterCircuitBreaker,
			Args: map[string]string{
				"name":        name,
				"fallbackUri": fallback,
			},
		}
	}

	out := make([]FilterEntry, 0, 3+len(userFilters))
	if rateLimiter != nil {
		out = append(out, *rateLimiter)
	}
	out = append(out, *retry, *breaker)
	out = append(out, userFilters...)
	return out
}
