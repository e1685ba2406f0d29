package correlation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuragate/neuragate/internal/filterchain"
)

func TestApplyMintsWhenAbsent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx, entry := New().Apply(context.Background(), req)
	require.NotNil(t, entry)

	id := req.Header.Get(Header)
	assert.NotEmpty(t, id)

	state := filterchain.StateFrom(ctx)
	require.NotNil(t, state)
	assert.Equal(t, id, state.CorrelationID)
}

func TestApplyReusesExisting(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(Header, "existing-id")

	ctx, _ := New().Apply(context.Background(), req)
	assert.Equal(t, "existing-id", req.Header.Get(Header))
	assert.Equal(t, "existing-id", filterchain.StateFrom(ctx).CorrelationID)
}

func TestEchoSetsResponseHeader(t *testing.T) {
	resp := &http.Response{}
	Echo(resp, "abc-123")
	assert.Equal(t, "abc-123", resp.Header.Get(Header))
}

func TestClientIPIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.5:1234"
	req.Header.Set("X-Forwarded-For", "10.0.0.1")

	ctx, _ := New("127.0.0.1/32").Apply(context.Background(), req)
	assert.Equal(t, "203.0.113.5", filterchain.StateFrom(ctx).ClientIP)
}

func TestClientIPHonorsForwardedForFromTrustedPeer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 172.16.0.1")

	ctx, _ := New("127.0.0.1/32").Apply(context.Background(), req)
	assert.Equal(t, "10.0.0.1", filterchain.StateFrom(ctx).ClientIP)
}
