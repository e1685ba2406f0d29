package routestore

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuragate/neuragate/internal/routing"
)

// newTestClient points at a local Redis instance - these tests exercise the
// real HSET/HGETALL/PING path and are skipped in short mode the way the
// teacher's own Redis-backed tests are (ratelimit/redis_test.go).
func newTestClient(t *testing.T) *redis.Client {
	if testing.Short() {
		t.Skip("skipping Redis-backed test in short mode")
	}
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("no local Redis reachable: %v", err)
	}
	return client
}

func sampleDefinition(id string) routing.Definition {
	return routing.Definition{
		ID:         id,
		URI:        "http://backend.internal",
		Predicates: []routing.Predicate{{Name: "Path", Args: map[string]string{"pattern": "/orders/**"}}},
		Enabled:    true,
	}
}

func TestPutLoadDeleteRoundTrip(t *testing.T) {
	client := newTestClient(t)
	defer client.Close()
	defer client.Del(context.Background(), "test.routes.hash")

	s := New(client, "test.routes.hash", nil)

	var changes []routing.ChangeEvent
	s.OnChange(func(ev routing.ChangeEvent) { changes = append(changes, ev) })

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, sampleDefinition("r1")))

	defs := s.LoadAll(ctx)
	require.Len(t, defs, 1)
	assert.Equal(t, "r1", defs[0].ID)

	require.NoError(t, s.Delete(ctx, "r1"))
	assert.Empty(t, s.LoadAll(ctx))

	require.Len(t, changes, 2)
	assert.False(t, changes[0].Deleted)
	assert.True(t, changes[1].Deleted)
}

func TestLoadAllDoesNotResurrectFallbackOnLegitimateEmptyStore(t *testing.T) {
	client := newTestClient(t)
	defer client.Close()
	defer client.Del(context.Background(), "test.routes.hash")

	fallback := []routing.Definition{sampleDefinition("fallback-route")}
	s := New(client, "test.routes.hash", fallback)

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, sampleDefinition("r1")))
	require.NoError(t, s.Delete(ctx, "r1"))

	assert.Empty(t, s.LoadAll(ctx))
}

func TestLoadAllFallsBackWhenUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	defer client.Close()

	fallback := []routing.Definition{sampleDefinition("fallback-route")}
	s := New(client, "routes.hash", fallback)

	defs := s.LoadAll(context.Background())
	require.Len(t, defs, 1)
	assert.Equal(t, "fallback-route", defs[0].ID)
	assert.True(t, s.FallbackLoaded())
}

func TestHealthFalseWhenUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	defer client.Close()

	s := New(client, "routes.hash", nil)
	assert.False(t, s.Health(context.Background()))
}
