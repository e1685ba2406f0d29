// Package routestore implements C1: a Redis-hash-backed store of
// RouteDefinitions with an in-memory fallback set, grounded on the
// original Java RedisRouteDefinitionRepository's "fall back to in-memory
// routes if Redis is down" pattern and on the teacher's go-redis/v9
// client wrapping style (net/redisclient.go).
package routestore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/neuragate/neuragate/internal/gatewayerr"
	"github.com/neuragate/neuragate/internal/routing"
)

// ChangeListener is notified on every successful Put/Delete, letting C2's
// Rebuilder recompile and swap without the store needing to know about
// routing internals.
type ChangeListener func(routing.ChangeEvent)

// Store is C1. Put/Delete write through to the routes.hash key in Redis;
// reads fall back to an in-memory set loaded at startup when Redis is
// unreachable.
type Store struct {
	client    *redis.Client
	routeKey  string
	fallback  []routing.Definition
	listeners []ChangeListener
}

func New(client *redis.Client, routeKey string, fallback []routing.Definition) *Store {
	if routeKey == "" {
		routeKey = "routes.hash"
	}
	return &Store{client: client, routeKey: routeKey, fallback: fallback}
}

// OnChange registers a listener invoked synchronously after every
// successful Put/Delete.
func (s *Store) OnChange(l ChangeListener) {
	s.listeners = append(s.listeners, l)
}

// Put upserts def by id and emits a route-changed event, per spec §4.1.
func (s *Store) Put(ctx context.Context, def routing.Definition) error {
	if err := def.Validate(); err != nil {
		return gatewayerr.New(gatewayerr.KindConfig, err)
	}

	data, err := json.Marshal(def)
	if err != nil {
		return gatewayerr.New(gatewayerr.KindConfig, err)
	}

	if err := s.client.HSet(ctx, s.routeKey, def.ID, data).Err(); err != nil {
		return gatewayerr.New(gatewayerr.KindStoreUnavailable, err)
	}

	s.notify(routing.ChangeEvent{RouteID: def.ID})
	return nil
}

// Delete removes id and emits a route-changed event with Deleted=true.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.HDel(ctx, s.routeKey, id).Err(); err != nil {
		return gatewayerr.New(gatewayerr.KindStoreUnavailable, err)
	}
	s.notify(routing.ChangeEvent{RouteID: id, Deleted: true})
	return nil
}

// LoadAll returns every definition in the store, falling back to the
// startup fallback set when Redis can't be reached - never returns an
// error, mirroring the original's onErrorResume behavior: a read failure
// degrades rather than propagates.
func (s *Store) LoadAll(ctx context.Context) []routing.Definition {
	raw, err := s.client.HGetAll(ctx, s.routeKey).Result()
	if err != nil {
		log.WithError(err).Warn("route store unavailable, using fallback route set")
		return s.fallback
	}

	defs := make([]routing.Definition, 0, len(raw))
	for id, v := range raw {
		var def routing.Definition
		if err := json.Unmarshal([]byte(v), &def); err != nil {
			log.WithField("route_id", id).WithError(err).Warn("dropping malformed stored route definition")
			continue
		}
		defs = append(defs, def)
	}

	return defs
}

// Health reports whether Redis answers PING within a 2s hard timeout, per
// spec §4.12.
func (s *Store) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.client.Ping(ctx).Err() == nil
}

// FallbackLoaded reports whether a non-empty fallback set was configured
// at startup - used by C12 to distinguish DEGRADED from DOWN.
func (s *Store) FallbackLoaded() bool {
	return len(s.fallback) > 0
}

func (s *Store) notify(ev routing.ChangeEvent) {
	for _, l := range s.listeners {
		l(ev)
	}
}
