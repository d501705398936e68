package pushshift

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/meigma/nastydata/core"
)

var errServer = errors.New("pushshift: server error")

// RetryOptions configures retries of failed requests.
type RetryOptions struct {
	// Attempts is the number of retries after the first request.
	Attempts int
	// Backoff is the wait before the first retry. It doubles per attempt.
	Backoff time.Duration
	// MaxBackoff caps the wait between retries.
	MaxBackoff time.Duration
}

// DefaultRetryOptions returns the retry policy used by New.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		Attempts:   5,
		Backoff:    time.Second,
		MaxBackoff: 30 * time.Second,
	}
}

// fetcher issues GET requests, retrying transport failures and 5xx responses.
type fetcher struct {
	client *http.Client
	retry  RetryOptions
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: time.Minute,
		},
	}
}

// get returns the body of url and its announced length (-1 if unknown).
// A 404 is reported as core.ErrNotFound and is not retried.
func (f *fetcher) get(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	var lastErr error

	for attempt := 0; attempt <= f.retry.Attempts; attempt++ {
		if attempt > 0 {
			if err := f.backoff(ctx, attempt); err != nil {
				return nil, 0, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("create request: %w", err)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: %s", errServer, resp.Status)
			continue
		}

		if err := checkStatusCode(resp.StatusCode); err != nil {
			resp.Body.Close()
			return nil, 0, fmt.Errorf("GET %s: %w", url, err)
		}

		return resp.Body, resp.ContentLength, nil
	}

	return nil, 0, fmt.Errorf("GET %s failed after %d attempts: %w", url, f.retry.Attempts+1, lastErr)
}

// wait returns Backoff doubled per attempt after the first, capped at
// MaxBackoff.
func (r RetryOptions) wait(attempt int) time.Duration {
	wait := r.Backoff
	for i := 1; i < attempt && wait < r.MaxBackoff; i++ {
		wait *= 2
	}
	return min(wait, r.MaxBackoff)
}

// backoff waits for an exponentially increasing duration with jitter.
func (f *fetcher) backoff(ctx context.Context, attempt int) error {
	wait := f.retry.wait(attempt)

	// 0.5 to 1.5 of wait
	jitter := time.Duration(float64(wait) * (0.5 + rand.Float64()))

	timer := time.NewTimer(jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func checkStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return core.ErrNotFound
	default:
		return fmt.Errorf("unexpected status code: %d", code)
	}
}
