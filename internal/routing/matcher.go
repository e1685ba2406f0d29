package routing

import (
	"net/http"
	"strings"
)

// matcher decides whether a request satisfies all of a route's predicates.
// Built once at compile time (C2) and never mutated, so it can be shared
// lock-free across concurrent requests (C3).
type matcher struct {
	predicates []predicateFunc
}

type predicateFunc func(req *http.Request) bool

func (m *matcher) match(req *http.Request) bool {
	for _, p := range m.predicates {
		if !p(req) {
			return false
		}
	}
	return true
}

// buildMatcher compiles the ordered predicate list of a definition into a
// matcher. Unknown predicate names are a config error, per spec §4.2/§9.
func buildMatcher(preds []Predicate) (*matcher, error) {
	m := &matcher{}
	for _, p := range preds {
		fn, err := buildPredicate(p)
		if err != nil {
			return nil, err
		}
		m.predicates = append(m.predicates, fn)
	}
	return m, nil
}

func buildPredicate(p Predicate) (predicateFunc, error) {
	switch p.Name {
	case "Path":
		pattern := p.Args["pattern"]
		segments := strings.Split(strings.Trim(pattern, "/"), "/")
		return func(req *http.Request) bool {
			return matchPath(segments, pathSegments(req.URL.Path))
		}, nil
	case "Method":
		method := strings.ToUpper(p.Args["method"])
		return func(req *http.Request) bool {
			return strings.EqualFold(req.Method, method)
		}, nil
	case "Header":
		name, want := p.Args["name"], p.Args["value"]
		return func(req *http.Request) bool {
			return req.Header.Get(name) == want
		}, nil
	default:
		return nil, errUnknownPred
	}
}

func pathSegments(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

// matchPath anchors pattern segments against request path segments. "*"
// matches exactly one segment; "**" matches the remainder of the path
// (zero or more segments) and must be the last pattern segment.
func matchPath(pattern, path []string) bool {
	for i, seg := range pattern {
		if seg == "**" {
			return true
		}
		if i >= len(path) {
			return false
		}
		if seg != "*" && seg != path[i] {
			return false
		}
	}
	return len(pattern) == len(path)
}
