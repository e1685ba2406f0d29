package filterchain

import (
	"fmt"

	"github.com/neuragate/neuragate/internal/gatewayerr"
)

// Args is the string-keyed argument map of a filter entry in a route
// definition, per spec §3.
type Args map[string]string

// Factory builds a Stage from its declared arguments. A Factory validates
// its own arguments and returns a *gatewayerr.Error of KindConfig for
// anything it can't parse.
type Factory func(args Args) (Stage, error)

// Registry is the closed map of filter name to Factory described in spec §9
// ("dynamic reflection on route filter names" → a registry, not runtime
// reflection). Unknown names are a config error raised by the compiler (C2),
// never a runtime surprise, mirroring the teacher's filters.Registry
// (filters/registry.go) Get/Add pattern.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Add registers factory under name, overwriting any previous registration -
// used by tests and by the default-filter wiring in cmd/neuragate.
func (r *Registry) Add(name string, factory Factory) {
	r.factories[name] = factory
}

// Has reports whether name is a known filter.
func (r *Registry) Has(name string) bool {
	_, ok := r.factories[name]
	return ok
}

// Build constructs the stage named name from args, or a KindConfig error if
// name is not registered or args fail to parse.
func (r *Registry) Build(name string, args Args) (Stage, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, gatewayerr.New(gatewayerr.KindConfig, fmt.Errorf("unknown filter %q", name))
	}
	stage, err := factory(args)
	if err != nil {
		return nil, gatewayerr.New(gatewayerr.KindConfig, fmt.Errorf("filter %q: %w", name, err))
	}
	return stage, nil
}
