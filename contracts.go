package nastydata

import (
	"context"

	"github.com/meigma/nastydata/core"
	"github.com/meigma/nastydata/internal/document"
	"github.com/meigma/nastydata/internal/elastic"
	"github.com/meigma/nastydata/internal/state"
)

type indexer interface {
	NewIndex(ctx context.Context, base string, k document.Kind, opts elastic.NewIndexOptions) (string, error)
	AddDocuments(ctx context.Context, index string, k document.Kind, src core.DocumentSource, opts elastic.AddOptions) (core.IndexStats, error)
	AnalyzeIndex(ctx context.Context, index string, k document.Kind) ([]string, error)
}

type stateStore interface {
	RecordDownload(d state.Download) error
	Downloads() ([]state.Download, error)
	RecordIndexed(index, file, kind string, stats core.IndexStats) error
	Indexed(index, file string) (state.Indexed, bool, error)
	IndexedAll() ([]state.Indexed, error)
}

var (
	_ indexer    = (*elastic.Client)(nil)
	_ stateStore = (*state.Store)(nil)
)
