package retry

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuragate/neuragate/internal/filterchain"
)

func TestStageRetriesOnRetryableStatus(t *testing.T) {
	factory := NewFactory()
	s, err := factory(filterchain.Args{"retries": "2", "statuses": "503"})
	require.NoError(t, err)

	calls := 0
	next := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		calls++
		if calls < 3 {
			return &http.Response{StatusCode: http.StatusServiceUnavailable}, nil
		}
		return &http.Response{StatusCode: http.StatusOK}, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx, state := filterchain.WithState(context.Background())

	resp, err := s.Invoke(ctx, req, next)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, state.RetryCount)
}

func TestStageGivesUpAfterMaxAttempts(t *testing.T) {
	factory := NewFactory()
	s, err := factory(filterchain.Args{"retries": "1", "statuses": "503"})
	require.NoError(t, err)

	calls := 0
	next := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		calls++
		return &http.Response{StatusCode: http.StatusServiceUnavailable}, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := s.Invoke(context.Background(), req, next)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, 2, calls) // first attempt + 1 retry
}

func TestStageSkipsNonWhitelistedMethod(t *testing.T) {
	factory := NewFactory()
	s, err := factory(filterchain.Args{"retries": "3", "methods": "GET"})
	require.NoError(t, err)

	calls := 0
	next := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		calls++
		return &http.Response{StatusCode: http.StatusServiceUnavailable}, nil
	}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	_, err = s.Invoke(context.Background(), req, next)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestStageRewindsBodyOnRetry(t *testing.T) {
	factory := NewFactory()
	s, err := factory(filterchain.Args{"retries": "1", "statuses": "503", "methods": "POST"})
	require.NoError(t, err)

	var bodies []string
	next := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		b, _ := io.ReadAll(req.Body)
		bodies = append(bodies, string(b))
		if len(bodies) < 2 {
			return &http.Response{StatusCode: http.StatusServiceUnavailable}, nil
		}
		return &http.Response{StatusCode: http.StatusOK}, nil
	}

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("payload"))
	resp, err := s.Invoke(context.Background(), req, next)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"payload", "payload"}, bodies)
}
