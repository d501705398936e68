package pushshift

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/nastydata/core"
	"github.com/meigma/nastydata/internal/monthly"
	"github.com/meigma/nastydata/internal/progress"
	"github.com/meigma/nastydata/internal/state"
)

// Recorder receives a record for every completed download.
type Recorder interface {
	RecordDownload(d state.Download) error
}

// Client downloads and samples Pushshift dumps.
type Client struct {
	fetch    *fetcher
	baseURLs map[core.DumpType]string
	logger   *slog.Logger
	bars     progress.Factory
	recorder Recorder
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithHTTPClient sets the HTTP client used for downloads.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.fetch.client = hc }
}

// WithRetry sets the retry policy for failed requests.
func WithRetry(retry RetryOptions) Option {
	return func(c *Client) { c.fetch.retry = retry }
}

// WithBaseURL overrides the directory URL dumps of type t are fetched from.
func WithBaseURL(t core.DumpType, url string) Option {
	return func(c *Client) {
		if !strings.HasSuffix(url, "/") {
			url += "/"
		}
		c.baseURLs[t] = url
	}
}

// WithProgress sets the factory for per-file progress bars.
func WithProgress(bars progress.Factory) Option {
	return func(c *Client) { c.bars = bars }
}

// WithRecorder sets where completed downloads are recorded.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// New creates a Client for the public Pushshift server.
func New(opts ...Option) *Client {
	c := &Client{
		fetch: &fetcher{
			client: newHTTPClient(),
			retry:  DefaultRetryOptions(),
		},
		baseURLs: map[core.DumpType]string{
			core.Links:    LinksURL,
			core.Comments: CommentsURL,
		},
		logger: slog.New(slog.DiscardHandler),
		bars:   progress.NoBars,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DownloadOptions selects which dumps to download.
type DownloadOptions struct {
	// Type restricts downloads to one dump type. Nil downloads both.
	Type *core.DumpType
	// Since is the first month to download. Nil starts at the earliest dump.
	Since *time.Time
	// Until is the last month to download. Nil continues until the server
	// has no dump for a month.
	Until *time.Time
}

// Download fetches dumps into dir. Months whose dump already exists in dir
// are skipped without contacting the server.
func (c *Client) Download(ctx context.Context, dir string, opts DownloadOptions) error {
	since, until := normalizeMonth(opts.Since), normalizeMonth(opts.Until)

	logType := "links and comments"
	if opts.Type != nil {
		logType = strings.ToLower(opts.Type.String())
	}
	logSince, logUntil := "earliest", "latest"
	if since != nil {
		logSince = monthly.Format(*since)
	}
	if until != nil {
		logUntil = monthly.Format(*until)
	}
	c.logger.Info("downloading Pushshift dumps of Reddit "+logType,
		"since", logSince, "until", logUntil, "dir", dir)

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}

	for _, t := range core.DumpTypes {
		if opts.Type != nil && *opts.Type != t {
			continue
		}

		checksums, err := c.fetchChecksums(ctx, t)
		if err != nil {
			return err
		}

		month := EarliestMonth(t)
		if since != nil {
			month = *since
		}
		for {
			err := c.downloadMonth(ctx, dir, t, month, checksums)
			if errors.Is(err, core.ErrNotOnServer) {
				if (since != nil && month.Equal(*since)) || until != nil {
					return err
				}
				c.logger.Debug("no more dumps on server", "type", t, "month", monthly.Format(month))
				break
			}
			if err != nil {
				return err
			}

			if until != nil && !month.Before(*until) {
				break
			}
			month = monthly.AddMonths(month, 1)
		}
	}
	return nil
}

func normalizeMonth(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	m := monthly.Of(*t)
	return &m
}

func (c *Client) fetchChecksums(ctx context.Context, t core.DumpType) (Checksums, error) {
	name := linksChecksums
	if t == core.Comments {
		name = commentsChecksums
	}
	url := c.baseURLs[t] + name

	body, _, err := c.fetch.get(ctx, url)
	if errors.Is(err, core.ErrNotFound) {
		c.logger.Warn("checksum list not found, downloads will not be verified", "url", url)
		return Checksums{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch checksums: %w", err)
	}
	defer body.Close()

	sums, err := ParseChecksums(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	c.logger.Debug("fetched checksums", "type", t, "count", len(sums))
	return sums, nil
}

func (c *Client) downloadMonth(ctx context.Context, dir string, t core.DumpType, month time.Time, checksums Checksums) error {
	// Resolve all candidates first so no request is made when any exists.
	for _, p := range Patterns(t) {
		target := filepath.Join(dir, p.FileName(month))
		if _, err := os.Stat(target); err == nil {
			c.logger.Debug("file already exists, skipping", "file", filepath.Base(target))
			return nil
		}
	}

	var (
		name   string
		result fetchResult
		found  bool
	)
	for _, p := range Patterns(t) {
		name = p.FileName(month)
		var err error
		result, err = c.fetchToFile(ctx, c.baseURLs[t]+name, filepath.Join(dir, name+".tmp"), name)
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		found = true
		break
	}
	if !found {
		return fmt.Errorf("%w: no Reddit %s dump for %s", core.ErrNotOnServer,
			strings.ToLower(t.String()), monthly.Format(month))
	}

	target := filepath.Join(dir, name)
	tmp := target + ".tmp"

	expected, ok := checksums[name]
	if !ok {
		c.logger.Info("download complete, but no checksum available", "file", name)
	} else if expected != result.digest {
		if err := os.Remove(tmp); err != nil {
			c.logger.Warn("failed to delete corrupt download", "file", tmp, "error", err)
		}
		return fmt.Errorf("%w: %s: calculated %s, expected %s; deleted file, restart to try again",
			core.ErrChecksumMismatch, name, result.digest.Encoded(), expected.Encoded())
	}

	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("rename download: %w", err)
	}

	if c.recorder != nil {
		err := c.recorder.RecordDownload(state.Download{
			Dir:    dir,
			File:   name,
			Type:   t.String(),
			Month:  monthly.Format(month),
			Digest: result.digest,
			Size:   result.size,
		})
		if err != nil {
			c.logger.Warn("failed to record download", "file", name, "error", err)
		}
	}
	return nil
}

type fetchResult struct {
	size   int64
	digest digest.Digest
}

// fetchToFile downloads url into dest while computing its SHA-256 digest.
func (c *Client) fetchToFile(ctx context.Context, url, dest, description string) (fetchResult, error) {
	c.logger.Debug("downloading", "url", url, "dest", dest)

	body, total, err := c.fetch.get(ctx, url)
	if err != nil {
		return fetchResult{}, err
	}
	defer body.Close()

	f, err := os.Create(dest)
	if err != nil {
		return fetchResult{}, fmt.Errorf("create download file: %w", err)
	}

	bar := c.bars(
		progress.WithDescription(description),
		progress.WithTotal(total),
		progress.WithUnit("B"),
		progress.WithUnitScale(true),
		progress.WithUnitDivisor(1024),
	)
	counted := progress.NewReader(body, total, func(consumed, _ int64) { bar.Set(consumed) })

	digester := digest.SHA256.Digester()
	written, err := io.Copy(io.MultiWriter(f, digester.Hash()), counted)
	bar.Close()
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dest)
		return fetchResult{}, fmt.Errorf("download %s: %w", description, err)
	}

	if total > 0 && total != written {
		c.logger.Warn("downloaded file size mismatch", "file", description, "expected", total, "got", written)
	}

	return fetchResult{size: written, digest: digester.Digest()}, nil
}
