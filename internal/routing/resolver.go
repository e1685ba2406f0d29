package routing

import (
	"net/http"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// ChangeEvent is emitted by the Route Store on every Put/Delete, per spec
// §4.1. The change listener wired up by C13 recompiles and swaps the
// snapshot in response, synchronously in the goroutine that made the change.
type ChangeEvent struct {
	RouteID string
	Deleted bool
}

// Resolver holds the live RouteSnapshot behind an atomic pointer and
// implements C3: iterate the current snapshot in ascending (order, id) and
// return the first matcher that accepts the request. Readers never block
// writers and never block each other.
type Resolver struct {
	current atomic.Pointer[Snapshot]
}

func NewResolver() *Resolver {
	r := &Resolver{}
	r.current.Store(newSnapshot(nil))
	return r
}

// Swap installs a new snapshot, replacing whatever was current. Older
// CompiledRoutes already handed out to in-flight requests stay alive via the
// caller's own reference - the swap is just a pointer store (spec §5).
func (r *Resolver) Swap(s *Snapshot) {
	r.current.Store(s)
}

// Snapshot returns the currently installed snapshot.
func (r *Resolver) Snapshot() *Snapshot {
	return r.current.Load()
}

// Resolve returns the first CompiledRoute in the current snapshot whose
// predicates all match req, or ok=false on no match (spec §4.3).
func (r *Resolver) Resolve(req *http.Request) (route *CompiledRoute, ok bool) {
	snap := r.current.Load()
	for _, cr := range snap.routes {
		if cr.Matches(req) {
			return cr, true
		}
	}
	return nil, false
}

// Rebuilder recompiles a full snapshot from the current set of definitions
// whenever the Route Store reports a change, and swaps it into a Resolver.
// Kept separate from Resolver so C2 (compile+swap) and C3 (read) stay
// independently testable, per the component split of spec §2.
type Rebuilder struct {
	compiler *Compiler
	resolver *Resolver
}

func NewRebuilder(compiler *Compiler, resolver *Resolver) *Rebuilder {
	return &Rebuilder{compiler: compiler, resolver: resolver}
}

// Rebuild compiles every definition in defs and swaps the result into the
// resolver as one atomic snapshot. Definitions that fail to compile are
// logged and dropped - rejected at C2, never installed (spec §7 Config
// errors).
func (rb *Rebuilder) Rebuild(defs []Definition) {
	compiled := make([]*CompiledRoute, 0, len(defs))
	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		cr, err := rb.compiler.Compile(def)
		if err != nil {
			log.WithField("route_id", def.ID).WithError(err).Warn("rejecting route definition")
			continue
		}
		compiled = append(compiled, cr)
	}
	rb.resolver.Swap(newSnapshot(compiled))
}
