package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuragate/neuragate/internal/filterchain"
)

type captureSink struct {
	events []Event
}

func (s *captureSink) Submit(e Event) {
	s.events = append(s.events, e)
}

func TestCaptureRecordsStatusAndFlags(t *testing.T) {
	sink := &captureSink{}
	cap := NewCapture(sink)

	next := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		state := filterchain.StateFrom(ctx)
		state.RouteID = "orders-route"
		state.RateLimited = true
		state.RetryCount = 2
		return &http.Response{StatusCode: http.StatusOK}, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("X-Correlation-ID", "corr-1")
	ctx, _ := filterchain.WithState(context.Background())

	_, err := cap.Wrap(next)(ctx, req)
	require.NoError(t, err)

	require.Len(t, sink.events, 1)
	ev := sink.events[0]
	assert.Equal(t, "orders-route", ev.RouteID)
	assert.Equal(t, http.StatusOK, ev.Status)
	assert.True(t, ev.RateLimited)
	assert.Equal(t, 2, ev.RetryCount)
	assert.Equal(t, "corr-1", ev.CorrelationID)
}

func TestCaptureSynthesizesStatusOnError(t *testing.T) {
	sink := &captureSink{}
	cap := NewCapture(sink)

	next := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return nil, assertError{}
	}

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	ctx, _ := filterchain.WithState(context.Background())

	_, err := cap.Wrap(next)(ctx, req)
	require.Error(t, err)

	require.Len(t, sink.events, 1)
	assert.Equal(t, http.StatusInternalServerError, sink.events[0].Status)
}

type assertError struct{}

func (assertError) Error() string { return "boom" }
