package pushshift

import (
	"context"
	"maps"
	"path/filepath"

	"github.com/meigma/nastydata/core"
	"github.com/meigma/nastydata/internal/decompress"
	"github.com/meigma/nastydata/internal/jsonl"
)

// Load reads the documents of a dump file. Each document gets a
// pushshift_dump_meta field describing the dump, or nil if the file name does
// not follow a dump naming scheme.
func Load(ctx context.Context, path string, opts ...decompress.Option) core.DocumentSource {
	return func(yield func(core.Document, error) bool) {
		meta := DumpMeta(filepath.Base(path))

		r, err := decompress.Open(path, append([]decompress.Option{decompress.WarnUncompressed(false)}, opts...)...)
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
