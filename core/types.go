// Package core provides the shared types and errors for nastydata.
//
// This package exists to break import cycles between the root nastydata
// package and internal implementation packages. The nastydata package
// re-exports the public types from this package, so external users should
// import nastydata directly, not nastydata/core.
package core

import (
	"errors"
	"fmt"
	"iter"
	"strings"
)

// Sentinel errors for common failure conditions.
var (
	// ErrNotFound indicates a requested remote resource does not exist.
	ErrNotFound = errors.New("nastydata: not found")

	// ErrNotOnServer indicates no dump file exists on the server for a month.
	ErrNotOnServer = errors.New("nastydata: dump not available on server")

	// ErrChecksumMismatch indicates a downloaded file does not match its published checksum.
	ErrChecksumMismatch = errors.New("nastydata: checksum mismatch")

	// ErrIndexNotFound indicates the Elasticsearch index does not exist.
	ErrIndexNotFound = errors.New("nastydata: index does not exist")

	// ErrInvalidDocument indicates a document could not be prepared for indexing.
	ErrInvalidDocument = errors.New("nastydata: invalid document")

	// ErrUnknownKind indicates a document kind or loader name is not registered.
	ErrUnknownKind = errors.New("nastydata: unknown kind")

	// ErrMissingCACert indicates the configured CA certificate could not be found.
	ErrMissingCACert = errors.New("nastydata: CA certificate not found")

	// ErrBulkFailed indicates some documents of a bulk request were rejected.
	ErrBulkFailed = errors.New("nastydata: bulk indexing failed")

	// ErrInvalidMonth indicates a month string is not in YYYY-MM format.
	ErrInvalidMonth = errors.New("nastydata: invalid month")
)

// Document is a single JSON object as read from a dump and sent to Elasticsearch.
type Document = map[string]any

// DocumentSource yields documents in file order. Iteration stops after the
// first non-nil error.
type DocumentSource = iter.Seq2[Document, error]

// DumpType identifies the kind of posts contained in a Pushshift dump.
type DumpType int

// Pushshift dump types.
const (
	Links DumpType = iota + 1
	Comments
)

// DumpTypes lists all dump types in processing order.
var DumpTypes = []DumpType{Links, Comments}

// String returns the upper-case name used in dump metadata.
func (t DumpType) String() string {
	switch t {
	case Links:
		return "LINKS"
	case Comments:
		return "COMMENTS"
	default:
		return fmt.Sprintf("DumpType(%d)", int(t))
	}
}

// ParseDumpType parses a dump type name case-insensitively.
func ParseDumpType(s string) (DumpType, error) {
	for _, t := range DumpTypes {
		if strings.EqualFold(s, t.String()) {
			return t, nil
		}
	}
	names := make([]string, len(DumpTypes))
	for i, t := range DumpTypes {
		names[i] = strings.ToLower(t.String())
	}
	return 0, fmt.Errorf("invalid dump type %q (valid: %s)", s, strings.Join(names, ", "))
}

// LineError reports a malformed line in a dump file.
type LineError struct {
	File string
	Line int // 1-based
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d of file %q: %v", e.Line, e.File, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// BulkError is returned when some documents of a bulk run were rejected.
// Use errors.As to extract it and inspect the first failures.
type BulkError struct {
	Succeeded int64
	Failed    int64
	// Items holds a description of up to the first ten failed items.
	Items []string
}

func (e *BulkError) Error() string {
	return fmt.Sprintf("failed to index %d documents (%d succeeded)", e.Failed, e.Succeeded)
}

func (e *BulkError) Unwrap() error { return ErrBulkFailed }

// IndexStats summarizes a bulk indexing run.
type IndexStats struct {
	Added     int64
	Succeeded int64
	Failed    int64
}
