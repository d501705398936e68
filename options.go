package nastydata

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/meigma/nastydata/core"
	"github.com/meigma/nastydata/internal/elastic"
	"github.com/meigma/nastydata/internal/progress"
	"github.com/meigma/nastydata/internal/pushshift"
	"github.com/meigma/nastydata/internal/state"
)

// ClientOption configures a Client.
type ClientOption func(*Client) error

// WithLogger sets the logger for client operations.
// By default, logging is disabled.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithElasticsearch sets the cluster that indices are managed on.
// Index operations fail with ErrNoElasticsearch without one.
func WithElasticsearch(es *elastic.Client) ClientOption {
	return func(c *Client) error {
		if es == nil {
			return errors.New("elasticsearch client is nil")
		}
		c.index = es
		return nil
	}
}

// WithStateStore sets where completed downloads and indexed files are
// recorded. The client does not close the store.
func WithStateStore(store *state.Store) ClientOption {
	return func(c *Client) error {
		if store == nil {
			return errors.New("state store is nil")
		}
		c.state = store
		return nil
	}
}

// WithHTTPClient sets the HTTP client used to download Pushshift dumps.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) error {
		c.pushshiftOpts = append(c.pushshiftOpts, pushshift.WithHTTPClient(hc))
		return nil
	}
}

// WithPushshiftURL overrides the directory dumps of type t are downloaded from.
func WithPushshiftURL(t core.DumpType, url string) ClientOption {
	return func(c *Client) error {
		c.pushshiftOpts = append(c.pushshiftOpts, pushshift.WithBaseURL(t, url))
		return nil
	}
}

// WithDownloadRetry sets how often failed Pushshift requests are retried and
// the wait before the first retry. The wait doubles per attempt.
func WithDownloadRetry(attempts int, backoff time.Duration) ClientOption {
	return func(c *Client) error {
		if attempts < 0 {
			return errors.New("download retry attempts must not be negative")
		}
		retry := pushshift.DefaultRetryOptions()
		retry.Attempts = attempts
		retry.Backoff = backoff
		c.pushshiftOpts = append(c.pushshiftOpts, pushshift.WithRetry(retry))
		return nil
	}
}

// WithProgress enables progress bars on stderr.
func WithProgress(enabled bool) ClientOption {
	return WithProgressWriter(enabled, os.Stderr)
}

// WithProgressWriter enables progress bars rendered to w.
func WithProgressWriter(enabled bool, w io.Writer) ClientOption {
	return func(c *Client) error {
		c.bars = progress.NewFactory(enabled, w)
		return nil
	}
}
