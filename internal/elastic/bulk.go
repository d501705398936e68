package elastic

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esutil"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/nastydata/core"
	"github.com/meigma/nastydata/internal/document"
	"github.com/meigma/nastydata/internal/jsonl"
)

// maxReportedFailures caps the item errors kept in a *core.BulkError.
const maxReportedFailures = 10

// Action is a single bulk update of one document.
type Action struct {
	Index string
	ID    string
	// Body is the update request body: either a doc_as_upsert update or an
	// upsert with a script merging the meta field.
	Body map[string]any
}

// metaScript merges params.meta_field into the meta field of an existing
// document. A null field is set, a list gets the value appended unless an
// entry with the same id exists, and a single object with a different id is
// turned into a list of both.
const metaScript = `
if (ctx._source.{field} == null) {
    ctx._source.{field} = params.meta_field;
} else if (ctx._source.{field} instanceof List) {
    boolean found = false;
    for (meta_field in ctx._source.{field}) {
        if (meta_field.{id} == params.meta_field.{id}) {
            found = true;
            break;
        }
    }
    if (!found) {
        ctx._source.{field}.add(params.meta_field);
    }
} else {
    if (ctx._source.{field}.{id} != params.meta_field.{id}) {
        ctx._source.{field} = [ctx._source.{field}, params.meta_field];
    }
}
`

// UpsertOp turns a raw document into the bulk action that upserts it into
// index. Documents carrying meta data of where they were read from have it
// merged into the stored document instead of replacing it, so a document
// found in several sources records all of them.
func UpsertOp(index string, k document.Kind, doc core.Document) (Action, error) {
	prepared, err := k.Prepare(doc)
	if err != nil {
		return Action{}, err
	}
	cleaned, err := document.Clean(k, prepared)
	if err != nil {
		return Action{}, err
	}

	id, ok := cleaned[document.IDField].(string)
	if !ok || id == "" {
		return Action{}, fmt.Errorf("%w: no document id", core.ErrInvalidDocument)
	}
	delete(cleaned, document.IDField)

	action := Action{Index: index, ID: id}
	field, idField, hasMeta := k.MetaField()
	meta, _ := cleaned[field].(map[string]any)
	if !hasMeta || len(meta) == 0 {
		action.Body = map[string]any{
			"doc":           cleaned,
			"doc_as_upsert": true,
		}
		return action, nil
	}

	source := strings.NewReplacer("{field}", field, "{id}", idField).Replace(metaScript)
	action.Body = map[string]any{
		"upsert": cleaned,
		"script": map[string]any{
			"lang":   "painless",
			"source": source,
			"params": map[string]any{"meta_field": meta},
		},
	}
	return action, nil
}

// AddOptions configures AddDocuments.
type AddOptions struct {
	// Workers is the number of goroutines preparing documents and the number
	// of bulk indexer workers. Zero means GOMAXPROCS.
	Workers int
	// FlushBytes is the bulk request size threshold. Zero uses the indexer default.
	FlushBytes int
	// FlushInterval is the maximum time between bulk requests. Zero uses the
	// indexer default.
	FlushInterval time.Duration
}

// AddDocuments upserts every document of src into index. Documents are
// prepared in parallel and sent in bulk requests. Documents the cluster
// rejects with 429 are sent again with backoff, up to the configured number
// of bulk retries. If some documents are rejected for good, the returned
// error is a *core.BulkError and the stats count them; a source error or a
// canceled ctx aborts the run.
func (c *Client) AddDocuments(ctx context.Context, index string, k document.Kind, src core.DocumentSource, opts AddOptions) (core.IndexStats, error) {
	var stats core.IndexStats
	if err := c.EnsureIndexExists(ctx, index); err != nil {
		return stats, err
	}
	c.logger.Debug("indexing documents", "index", index, "kind", k.Name())

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	run := &bulkRun{c: c, index: index, opts: opts, workers: workers}

	bi, err := run.newIndexer()
	if err != nil {
		return stats, err
	}

	var added atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	docs := make(chan core.Document, workers*2)

	g.Go(func() error {
		defer close(docs)
		for doc, err := range src {
			if err != nil {
				return err
			}
			select {
			case docs <- doc:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for range workers {
		g.Go(func() error {
			for doc := range docs {
				action, err := UpsertOp(index, k, doc)
				if err != nil {
					return err
				}
				body, err := jsonl.JSON.Marshal(action.Body)
				if err != nil {
					return fmt.Errorf("encode document %s: %w", action.ID, err)
				}
				if err := run.add(gctx, bi, bulkItem{id: action.ID, body: body}); err != nil {
					return err
				}
				added.Add(1)
			}
			return nil
		})
	}

	runErr := g.Wait()
	closeErr := bi.Close(context.WithoutCancel(ctx))
	if runErr == nil && closeErr == nil {
		runErr = run.retryBusy(ctx)
	}

	stats = core.IndexStats{
		Added:     added.Load(),
		Succeeded: run.succeeded.Load(),
		Failed:    run.failed.Load(),
	}
	if runErr != nil {
		return stats, runErr
	}
	if closeErr != nil {
		return stats, fmt.Errorf("flush bulk indexer: %w", closeErr)
	}
	if stats.Failed > 0 {
		return stats, &core.BulkError{Succeeded: stats.Succeeded, Failed: stats.Failed, Items: run.failures}
	}

	c.logger.Debug("indexed documents", "index", index, "count", stats.Succeeded)
	return stats, nil
}

// bulkItem is an encoded update kept for resending.
type bulkItem struct {
	id     string
	body   []byte
	reason string
}

// bulkRun tracks the outcome of the documents of one AddDocuments call
// across the first pass and its retry rounds.
type bulkRun struct {
	c       *Client
	index   string
	opts    AddOptions
	workers int

	succeeded, failed atomic.Int64

	mu       sync.Mutex
	failures []string
	busy     []bulkItem
}

func (r *bulkRun) newIndexer() (esutil.BulkIndexer, error) {
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:         r.index,
		Client:        r.c.es,
		NumWorkers:    r.workers,
		FlushBytes:    r.opts.FlushBytes,
		FlushInterval: r.opts.FlushInterval,
		OnError: func(_ context.Context, err error) {
			r.c.logger.Error("bulk request failed", "index", r.index, "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create bulk indexer: %w", err)
	}
	return bi, nil
}

func (r *bulkRun) add(ctx context.Context, bi esutil.BulkIndexer, item bulkItem) error {
	err := bi.Add(ctx, esutil.BulkIndexerItem{
		Action:     "update",
		DocumentID: item.id,
		Body:       bytes.NewReader(item.body),
		OnSuccess: func(context.Context, esutil.BulkIndexerItem, esutil.BulkIndexerResponseItem) {
			r.succeeded.Add(1)
		},
		OnFailure: func(_ context.Context, _ esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
			if err == nil && res.Status == http.StatusTooManyRequests {
				item.reason = fmt.Sprintf("%s: %s: %s", item.id, res.Error.Type, res.Error.Reason)
				r.mu.Lock()
				r.busy = append(r.busy, item)
				r.mu.Unlock()
				return
			}
			msg := fmt.Sprintf("%s: %s: %s", item.id, res.Error.Type, res.Error.Reason)
			if err != nil {
				msg = fmt.Sprintf("%s: %v", item.id, err)
			}
			r.fail(msg)
		},
	})
	if err != nil {
		return fmt.Errorf("queue document %s: %w", item.id, err)
	}
	return nil
}

func (r *bulkRun) fail(msg string) {
	r.failed.Add(1)
	r.mu.Lock()
	if len(r.failures) < maxReportedFailures {
		r.failures = append(r.failures, msg)
	}
	r.mu.Unlock()
	r.c.logger.Debug("document rejected", "index", r.index, "detail", msg)
}

func (r *bulkRun) takeBusy() []bulkItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	busy := r.busy
	r.busy = nil
	return busy
}

// retryBusy resends documents rejected with 429 until they are accepted or
// the retries are used up.
func (r *bulkRun) retryBusy(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		busy := r.takeBusy()
		if len(busy) == 0 {
			return nil
		}
		if attempt > r.c.bulkRetries {
			for _, item := range busy {
				r.fail(item.reason)
			}
			return nil
		}

		r.c.logger.Debug("retrying rejected documents", "index", r.index, "count", len(busy), "attempt", attempt)
		timer := time.NewTimer(backoff(r.c.bulkBackoff, maxBulkBackoff, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		bi, err := r.newIndexer()
		if err != nil {
			return err
		}
		for _, item := range busy {
			if err := r.add(ctx, bi, item); err != nil {
				_ = bi.Close(context.WithoutCancel(ctx))
				return err
			}
		}
		if err := bi.Close(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("flush bulk indexer: %w", err)
		}
	}
}

// maxBulkBackoff caps the wait between bulk retry rounds.
const maxBulkBackoff = 30 * time.Second

// backoff returns base doubled per attempt after the first, capped at limit.
func backoff(base, limit time.Duration, attempt int) time.Duration {
	wait := base
	for i := 1; i < attempt && wait < limit; i++ {
		wait *= 2
	}
	return min(wait, limit)
}
