package nastydata

import (
	"github.com/meigma/nastydata/core"
	"github.com/meigma/nastydata/internal/state"
)

// Type aliases for the public API.
type (
	// DumpType identifies Pushshift link or comment dumps.
	DumpType = core.DumpType
	// IndexStats summarizes a bulk indexing run.
	IndexStats = core.IndexStats
	// BulkError reports documents rejected by Elasticsearch.
	BulkError = core.BulkError
	// LineError reports a malformed line in a dump file.
	LineError = core.LineError
	// Download records a verified Pushshift download.
	Download = state.Download
	// IndexedFile records a file fully indexed into an index.
	IndexedFile = state.Indexed
)

// Pushshift dump types.
const (
	Links    = core.Links
	Comments = core.Comments
)

// ParseDumpType parses "links" or "comments" case-insensitively.
func ParseDumpType(s string) (DumpType, error) {
	return core.ParseDumpType(s)
}
