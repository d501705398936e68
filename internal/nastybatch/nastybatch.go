// Package nastybatch reads the results of NASTY batch runs: tweets stored as
// "<id>.data.jsonl.xz" next to a "<id>.meta.json" describing the request.
package nastybatch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"strings"

	"github.com/meigma/nastydata/core"
	"github.com/meigma/nastydata/internal/decompress"
	"github.com/meigma/nastydata/internal/jsonl"
)

// MetaField is the document field the batch metadata is stored in.
const MetaField = "nasty_batch_meta"

const (
	dataSuffix = ".data.jsonl.xz"
	metaSuffix = ".meta.json"
)

// MetaPath returns the metadata file belonging to dataFile. ok is false if
// dataFile is not named like a batch data file.
func MetaPath(dataFile string) (string, bool) {
	base, ok := strings.CutSuffix(dataFile, dataSuffix)
	if !ok {
		return "", false
	}
	return base + metaSuffix, true
}

// ReadMeta reads the metadata of the batch dataFile belongs to. It returns nil
// without error if there is no metadata file.
func ReadMeta(dataFile string) (core.Document, error) {
	path, ok := MetaPath(dataFile)
	if !ok {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read batch meta: %w", err)
	}

	var meta core.Document
	if err := jsonl.JSON.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode batch meta %s: %w", path, err)
	}
	return meta, nil
}

// Load reads the tweets of a batch data file. Each tweet gets a
// nasty_batch_meta field holding the batch metadata, or nil if there is none.
func Load(ctx context.Context, path string, opts ...decompress.Option) core.DocumentSource {
	return func(yield func(core.Document, error) bool) {
		meta, err := ReadMeta(path)
		if err != nil {
			yield(nil, err)
			return
		}

		r, err := decompress.Open(path, opts...)
		if err != nil {
			yield(nil, err)
			return
		}
		defer r.Close()

		for doc, err := range jsonl.Decode(ctx, r, path) {
			if err != nil {
				yield(nil, err)
				return
			}
			if meta != nil {
				doc[MetaField] = maps.Clone(meta)
			} else {
				doc[MetaField] = nil
			}
			if !yield(doc, nil) {
				return
			}
		}
	}
}
