package pushshift

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/nastydata/core"
)

func fastRetry() RetryOptions {
	return RetryOptions{Attempts: 2, Backoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestFetcher_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, "dump")
	}))
	defer srv.Close()

	f := &fetcher{client: srv.Client(), retry: fastRetry()}
	body, size, err := f.get(context.Background(), srv.URL+"/RS_2005-06.bz2")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "dump", string(data))
	assert.Equal(t, int64(4), size)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetcher_GivesUp(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := &fetcher{client: srv.Client(), retry: fastRetry()}
	_, _, err := f.get(context.Background(), srv.URL)
	require.ErrorIs(t, err, errServer)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetcher_NotFoundIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := &fetcher{client: srv.Client(), retry: fastRetry()}
	_, _, err := f.get(context.Background(), srv.URL)
	require.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetcher_Forbidden(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := &fetcher{client: srv.Client(), retry: fastRetry()}
	_, _, err := f.get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrNotFound)
	assert.Contains(t, err.Error(), "403")
}

func TestFetcher_ContextCancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	f := &fetcher{
		client: srv.Client(),
		retry:  RetryOptions{Attempts: 3, Backoff: time.Hour, MaxBackoff: time.Hour},
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, _, err := f.get(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryOptions_Wait(t *testing.T) {
	t.Parallel()

	r := DefaultRetryOptions()
	assert.Equal(t, time.Second, r.wait(1))
	assert.Equal(t, 4*time.Second, r.wait(3))
	assert.Equal(t, r.MaxBackoff, r.wait(6))
	assert.Equal(t, r.MaxBackoff, r.wait(40))
	assert.Equal(t, r.MaxBackoff, r.wait(1000))
}
