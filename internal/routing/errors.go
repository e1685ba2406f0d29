package routing

import "errors"

var (
	errEmptyID      = errors.New("route definition must have a non-empty id")
	errEmptyURI     = errors.New("route definition must have a uri")
	errNoPredicates = errors.New("route definition must have at least one predicate")
	errBadScheme    = errors.New("route uri scheme must be http or https")
	errUnknownPred  = errors.New("unknown predicate name")
)
