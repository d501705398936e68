package elastic

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meigma/nastydata/internal/document"
	"github.com/meigma/nastydata/internal/jsonl"
)

// indexTimeFormat is appended to base names to version indices.
const indexTimeFormat = "20060102-150405"

// reindexTimeout bounds how long moving data into a new index may take.
const reindexTimeout = time.Hour

// NewIndexOptions configures NewIndex.
type NewIndexOptions struct {
	// MoveData reindexes all documents of the current base index into the new one.
	MoveData bool
	// UpdateAlias points the base name alias at the new index.
	UpdateAlias bool
}

// NewIndex creates a new version of the index base, named
// "<base>-YYYYmmdd-HHMMSS", with the settings and mapping of k. Existing
// versions are left untouched, so incompatible mapping changes are safe.
// It returns the name of the new index.
func (c *Client) NewIndex(ctx context.Context, base string, k document.Kind, opts NewIndexOptions) (string, error) {
	name := base + "-" + c.now().Format(indexTimeFormat)
	c.logger.Debug("creating index", "index", name, "kind", k.Name())

	body, err := jsonl.JSON.Marshal(map[string]any{
		"settings": k.IndexSettings(),
		"mappings": map[string]any{"properties": k.Mapping().Mapping()},
	})
	if err != nil {
		return "", fmt.Errorf("encode index body: %w", err)
	}
	res, err := c.es.Indices.Create(name,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err := decode("create index", res, err, nil); err != nil {
		return "", err
	}

	if opts.MoveData {
		c.logger.Info("reindexing data from previous index", "from", base, "to", name)
		if err := c.reindex(ctx, base, name); err != nil {
			return name, err
		}
	}

	if opts.UpdateAlias {
		if err := c.moveAlias(ctx, base, name); err != nil {
			return name, err
		}
	}

	return name, nil
}

type taskStatus struct {
	Completed bool           `json:"completed"`
	Error     map[string]any `json:"error"`
	Response  struct {
		Total    int64 `json:"total"`
		Created  int64 `json:"created"`
		Failures []any `json:"failures"`
	} `json:"response"`
}

// reindex copies all documents of from into to. The reindex runs as a task
// that is polled, so it is not bound by the response timeout.
func (c *Client) reindex(ctx context.Context, from, to string) error {
	ctx, cancel := context.WithTimeout(ctx, reindexTimeout)
	defer cancel()

	body, err := jsonl.JSON.Marshal(map[string]any{
		"source": map[string]any{"index": from},
		"dest":   map[string]any{"index": to},
	})
	if err != nil {
		return fmt.Errorf("encode reindex body: %w", err)
	}

	var started struct {
		Task string `json:"task"`
	}
	res, err := c.es.Reindex(bytes.NewReader(body),
		c.es.Reindex.WithContext(ctx),
		c.es.Reindex.WithWaitForCompletion(false),
	)
	if err := decode("reindex", res, err, &started); err != nil {
		return err
	}
	if started.Task == "" {
		return errors.New("reindex: no task id in response")
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		var status taskStatus
		res, err := c.es.Tasks.Get(started.Task, c.es.Tasks.Get.WithContext(ctx))
		if err := decode("get reindex task", res, err, &status); err != nil {
			return err
		}
		if status.Completed {
			if status.Error != nil {
				return fmt.Errorf("reindex failed: %v", status.Error["reason"])
			}
			if n := len(status.Response.Failures); n > 0 {
				return fmt.Errorf("reindex: %d documents failed", n)
			}
			c.logger.Info("reindex complete", "documents", status.Response.Total)
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("reindex task %s: %w", started.Task, ctx.Err())
		case <-ticker.C:
		}
	}

	res, err = c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(to),
	)
	return decode("refresh index", res, err, nil)
}

// moveAlias removes the alias base from every "<base>-*" index and adds it to index.
func (c *Client) moveAlias(ctx context.Context, base, index string) error {
	pattern := base + "-*"
	res, err := c.es.Indices.ExistsAlias([]string{base},
		c.es.Indices.ExistsAlias.WithContext(ctx),
		c.es.Indices.ExistsAlias.WithIndex(pattern),
	)
	found, err := exists("check alias", res, err)
	if err != nil {
		return err
	}
	if found {
		c.logger.Debug("removing alias from previous indices", "alias", base)
		res, err := c.es.Indices.DeleteAlias([]string{pattern}, []string{base},
			c.es.Indices.DeleteAlias.WithContext(ctx),
		)
		if err := decode("delete alias", res, err, nil); err != nil {
			return err
		}
	}

	c.logger.Debug("pointing alias at new index", "alias", base, "index", index)
	res, err = c.es.Indices.PutAlias([]string{index}, base,
		c.es.Indices.PutAlias.WithContext(ctx),
	)
	return decode("put alias", res, err, nil)
}

// DeleteIndex deletes index.
func (c *Client) DeleteIndex(ctx context.Context, index string) error {
	res, err := c.es.Indices.Delete([]string{index},
		c.es.Indices.Delete.WithContext(ctx),
	)
	return decode("delete index", res, err, nil)
}
