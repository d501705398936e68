package nastydata

import (
	"context"
	"time"

	"github.com/meigma/nastydata/internal/pushshift"
)

// DownloadOptions selects which Pushshift dumps to download.
type DownloadOptions struct {
	// Type restricts downloads to links or comments. Nil downloads both.
	Type *DumpType
	// Since is the first month to download. Nil starts at the earliest dump.
	Since *time.Time
	// Until is the last month to download. Nil continues until the server
	// has no dump for a month.
	Until *time.Time
}

// DownloadPushshift downloads monthly Reddit dumps into dir and verifies them
// against the published checksums. Dumps already in dir are kept.
func (c *Client) DownloadPushshift(ctx context.Context, dir string, opts DownloadOptions) error {
	return c.pushshift().Download(ctx, dir, pushshift.DownloadOptions{
		Type:  opts.Type,
		Since: opts.Since,
		Until: opts.Until,
	})
}

// SamplePushshift writes a sample of every dump in dir and concatenates them
// into dir/all.sample.
func (c *Client) SamplePushshift(ctx context.Context, dir string) error {
	return c.pushshift().Sample(ctx, dir)
}
