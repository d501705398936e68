package nastydata

import (
	"log/slog"

	"github.com/meigma/nastydata/internal/progress"
	"github.com/meigma/nastydata/internal/pushshift"
)

// Client downloads archives and manages the indices they are stored in.
type Client struct {
	index  indexer
	state  stateStore
	logger *slog.Logger
	bars   progress.Factory

	// configuration passed to the Pushshift downloader
	pushshiftOpts []pushshift.Option
}

// NewClient creates a new client.
//
// Without WithElasticsearch only the Pushshift operations are available.
// Without WithStateStore nothing is recorded and IndexDump never skips files.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		logger: slog.New(slog.DiscardHandler),
		bars:   progress.NoBars,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Client) elasticsearch() (indexer, error) {
	if c.index == nil {
		return nil, ErrNoElasticsearch
	}
	return c.index, nil
}

func (c *Client) pushshift() *pushshift.Client {
	opts := []pushshift.Option{
		pushshift.WithLogger(c.logger),
		pushshift.WithProgress(c.bars),
	}
	if c.state != nil {
		opts = append(opts, pushshift.WithRecorder(c.state))
	}
	return pushshift.New(append(opts, c.pushshiftOpts...)...)
}
