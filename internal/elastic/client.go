// Package elastic manages versioned Elasticsearch indices and bulk upserts
// documents into them.
package elastic

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/meigma/nastydata/core"
	"github.com/meigma/nastydata/internal/jsonl"
)

// Config describes how to reach the Elasticsearch cluster.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	// CACertPath is the PEM file of the CA that signed the cluster's HTTP
	// certificate. Connecting without one is not supported.
	CACertPath     string
	Timeout        time.Duration
	RetryOnTimeout bool
	MaxRetries     int
	HTTPCompress   bool
}

// DefaultConfig returns the configuration of a local development cluster.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           9200,
		User:           "elastic",
		Timeout:        10 * time.Second,
		RetryOnTimeout: true,
		MaxRetries:     5,
		HTTPCompress:   true,
	}
}

// Address returns the HTTPS URL of the cluster.
func (c Config) Address() string {
	return "https://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// retryStatuses are retried by the transport. 429 covers bulk rejections
// under back pressure.
var retryStatuses = []int{http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout}

// Connect creates a Client for the cluster described by cfg.
func Connect(cfg Config, opts ...Option) (*Client, error) {
	pem, err := os.ReadFile(cfg.CACertPath)
	if errors.Is(err, fs.ErrNotExist) || cfg.CACertPath == "" {
		return nil, fmt.Errorf("%w: %q", core.ErrMissingCACert, cfg.CACertPath)
	}
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", cfg.CACertPath)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		RootCAs:    pool,
		ServerName: cfg.Host,
		MinVersion: tls.VersionTLS12,
	}
	transport.ResponseHeaderTimeout = cfg.Timeout

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:           []string{cfg.Address()},
		Username:            cfg.User,
		Password:            cfg.Password,
		Transport:           transport,
		CompressRequestBody: cfg.HTTPCompress,
		MaxRetries:          cfg.MaxRetries,
		RetryOnStatus:       retryStatuses,
		RetryOnError: func(_ *http.Request, err error) bool {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return cfg.RetryOnTimeout
			}
			return true
		},
		RetryBackoff: func(attempt int) time.Duration {
			return min(time.Duration(attempt)*500*time.Millisecond, 10*time.Second)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	opts = append([]Option{WithBulkRetry(cfg.MaxRetries, 500*time.Millisecond)}, opts...)
	return New(es, opts...), nil
}

// Client performs index operations against one cluster.
type Client struct {
	es           *elasticsearch.Client
	logger       *slog.Logger
	now          func() time.Time
	pollInterval time.Duration
	bulkRetries  int
	bulkBackoff  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClock sets the clock used to name new indices.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithPollInterval sets how often a running reindex task is checked.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = d
	}
}

// WithBulkRetry sets how often documents rejected with 429 inside a bulk
// response are sent again, and the wait before the first retry. The wait
// doubles per retry.
func WithBulkRetry(retries int, backoff time.Duration) Option {
	return func(c *Client) {
		c.bulkRetries = max(retries, 0)
		c.bulkBackoff = backoff
	}
}

// New wraps an existing Elasticsearch client.
func New(es *elasticsearch.Client, opts ...Option) *Client {
	c := &Client{
		es:           es,
		logger:       slog.New(slog.DiscardHandler),
		now:          time.Now,
		pollInterval: 5 * time.Second,
		bulkRetries:  5,
		bulkBackoff:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResponseError is an unexpected status returned by Elasticsearch.
type ResponseError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: elasticsearch returned %d: %s", e.Op, e.StatusCode, e.Body)
}

// check closes non-nil responses with error statuses and converts them to a
// *ResponseError. Successful responses are left open for the caller.
func check(op string, res *esapi.Response, err error) (*esapi.Response, error) {
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !res.IsError() {
		return res, nil
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return nil, &ResponseError{Op: op, StatusCode: res.StatusCode, Body: string(body)}
}

// decode reads a successful response into v and closes it.
func decode(op string, res *esapi.Response, err error, v any) error {
	res, err = check(op, res, err)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if v == nil {
		_, err = io.Copy(io.Discard, res.Body)
		return err
	}
	if err := jsonl.JSON.NewDecoder(res.Body).Decode(v); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// exists reports whether a HEAD-style request found its target.
func exists(op string, res *esapi.Response, err error) (bool, error) {
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &ResponseError{Op: op, StatusCode: res.StatusCode}
	}
}

// EnsureIndexExists returns core.ErrIndexNotFound if index does not exist.
func (c *Client) EnsureIndexExists(ctx context.Context, index string) error {
	res, err := c.es.Indices.Exists([]string{index}, c.es.Indices.Exists.WithContext(ctx))
	ok, err := exists("check index", res, err)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrIndexNotFound, index)
	}
	return nil
}
