package nastydata

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/meigma/nastydata/internal/decompress"
	"github.com/meigma/nastydata/internal/document"
	"github.com/meigma/nastydata/internal/elastic"
	"github.com/meigma/nastydata/internal/progress"
	"github.com/meigma/nastydata/internal/source"
)

// NewIndexOptions configures NewIndex.
type NewIndexOptions struct {
	// MoveData copies all documents of the current index behind the alias
	// into the new index.
	MoveData bool
	// UpdateAlias points the alias at the new index.
	UpdateAlias bool
}

// NewIndex creates a new versioned index "<name>-YYYYmmdd-HHMMSS" for the
// given document kind and returns its name.
func (c *Client) NewIndex(ctx context.Context, name, kind string, opts NewIndexOptions) (string, error) {
	es, err := c.elasticsearch()
	if err != nil {
		return "", err
	}
	k, err := document.Lookup(kind)
	if err != nil {
		return "", err
	}

	index, err := es.NewIndex(ctx, name, k, elastic.NewIndexOptions{
		MoveData:    opts.MoveData,
		UpdateAlias: opts.UpdateAlias,
	})
	if err != nil {
		return "", fmt.Errorf("new index %s: %w", name, err)
	}
	return index, nil
}

// IndexDumpOptions configures IndexDump.
type IndexDumpOptions struct {
	// Index is the index or alias documents are upserted into.
	Index string
	// Kind names the document kind, e.g. "pushshift-reddit".
	Kind string
	// Loader names how File is read, e.g. "pushshift".
	Loader string
	// File is the dump to index.
	File string
	// Workers is the number of parallel workers. Zero means GOMAXPROCS.
	Workers int
	// FlushBytes is the bulk request size threshold. Zero uses the default.
	FlushBytes int
	// FlushInterval is the maximum time between bulk requests. Zero uses the default.
	FlushInterval time.Duration
	// Force indexes File even if it was already indexed into Index.
	Force bool
}

// IndexResult describes the outcome of IndexDump.
type IndexResult struct {
	Stats IndexStats
	// Skipped is set when the file had already been indexed. Stats are then
	// those of the earlier run.
	Skipped bool
}

// IndexDump upserts all documents of a dump file into an index.
//
// If some documents are rejected the error is a *BulkError and the file is
// not recorded as indexed.
func (c *Client) IndexDump(ctx context.Context, opts IndexDumpOptions) (IndexResult, error) {
	es, err := c.elasticsearch()
	if err != nil {
		return IndexResult{}, err
	}
	k, err := document.Lookup(opts.Kind)
	if err != nil {
		return IndexResult{}, err
	}
	load, err := source.Lookup(opts.Loader)
	if err != nil {
		return IndexResult{}, err
	}

	info, err := os.Stat(opts.File)
	if errors.Is(err, os.ErrNotExist) {
		return IndexResult{}, fmt.Errorf("%w: %s", ErrNotFound, opts.File)
	}
	if err != nil {
		return IndexResult{}, fmt.Errorf("stat dump: %w", err)
	}

	if c.state != nil && !opts.Force {
		rec, ok, err := c.state.Indexed(opts.Index, opts.File)
		if err != nil {
			return IndexResult{}, err
		}
		if ok {
			c.logger.Warn("file was already indexed, skipping",
				"file", opts.File, "index", opts.Index,
				"at", rec.CompletedAt.Format(time.RFC3339))
			return IndexResult{Stats: rec.Stats, Skipped: true}, nil
		}
	}

	c.logger.Info("indexing dump", "file", opts.File, "index", opts.Index,
		"kind", k.Name(), "size", humanize.IBytes(uint64(info.Size())))

	bar := c.bars(
		progress.WithDescription(filepath.Base(opts.File)),
		progress.WithTotal(info.Size()),
		progress.WithUnit("B"),
		progress.WithUnitScale(true),
		progress.WithUnitDivisor(1024),
	)
	defer bar.Close()

	src := load(ctx, opts.File,
		decompress.WithLogger(c.logger),
		decompress.WithProgress(func(consumed, _ int64) { bar.Set(consumed) }),
	)
	read := progress.NoBars(progress.WithUnit("docs"))

	stats, err := es.AddDocuments(ctx, opts.Index, k, progress.Iterate2(src, read), elastic.AddOptions{
		Workers:       opts.Workers,
		FlushBytes:    opts.FlushBytes,
		FlushInterval: opts.FlushInterval,
	})
	res := IndexResult{Stats: stats}
	if err != nil {
		c.logger.Warn("indexing stopped", "file", opts.File, "index", opts.Index,
			"read", humanize.Comma(read.N()), "indexed", humanize.Comma(stats.Succeeded))
		return res, fmt.Errorf("index %s: %w", opts.File, err)
	}

	c.logger.Info("indexed dump", "file", opts.File, "index", opts.Index,
		"read", humanize.Comma(read.N()), "documents", humanize.Comma(stats.Succeeded))

	if c.state != nil {
		if err := c.state.RecordIndexed(opts.Index, opts.File, k.Name(), stats); err != nil {
			return res, err
		}
	}
	return res, nil
}

// AnalyzeIndex compares the live mapping of index with the mapping a fresh
// index of the given kind would have. Fields Elasticsearch added dynamically
// show up as differences. The diff lines are logged and returned.
func (c *Client) AnalyzeIndex(ctx context.Context, index, kind string) ([]string, error) {
	es, err := c.elasticsearch()
	if err != nil {
		return nil, err
	}
	k, err := document.Lookup(kind)
	if err != nil {
		return nil, err
	}
	return es.AnalyzeIndex(ctx, index, k)
}
