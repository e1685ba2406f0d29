package routing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"

	"github.com/neuragate/neuragate/internal/filterchain"
)

// CompiledRoute is the immutable, derived record of spec §3: a definition
// plus a matcher and an ordered filter chain. Its identity is (id,
// content-hash) - any definition change produces a new CompiledRoute, and
// the old one is retained until no in-flight request references it (the
// caller holds a *CompiledRoute, not an index into a mutable slice).
type CompiledRoute struct {
	Definition Definition
	Backend    *url.URL
	Hash       string

	matcher *matcher
	chain   *filterchain.Chain
}

// Chain returns the compiled filter chain (RateLimiter → Retry →
// CircuitBreaker → user filters → Proxy), fixed for the lifetime of this
// CompiledRoute per spec §8's "Filter order is invariant" invariant.
func (c *CompiledRoute) Chain() *filterchain.Chain {
	return c.chain
}

// Matches reports whether req satisfies every predicate of this route.
func (c *CompiledRoute) Matches(req *http.Request) bool {
	return c.matcher.match(req)
}

func contentHash(d Definition) string {
	b, _ := json.Marshal(d)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}

// Snapshot is the set of all enabled CompiledRoutes sorted by (order, id),
// swapped atomically on every change per spec §3/§5.
type Snapshot struct {
	routes []*CompiledRoute
}

func newSnapshot(routes []*CompiledRoute) *Snapshot {
	sorted := make([]*CompiledRoute, len(routes))
	copy(sorted, routes)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i].Definition, sorted[j].Definition
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID < b.ID
	})
	return &Snapshot{routes: sorted}
}

// Routes returns the sorted, immutable route list.
func (s *Snapshot) Routes() []*CompiledRoute {
	return s.routes
}
