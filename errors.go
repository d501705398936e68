package nastydata

import (
	"errors"

	"github.com/meigma/nastydata/core"
)

// Sentinel errors for nastydata operations.
// These are re-exported from the core package for convenience.
var (
	// ErrNotFound indicates a requested file does not exist.
	ErrNotFound = core.ErrNotFound

	// ErrNotOnServer indicates the Pushshift server has no dump for a month.
	ErrNotOnServer = core.ErrNotOnServer

	// ErrChecksumMismatch indicates a downloaded dump does not match its
	// published checksum.
	ErrChecksumMismatch = core.ErrChecksumMismatch

	// ErrIndexNotFound indicates the Elasticsearch index or alias does not exist.
	ErrIndexNotFound = core.ErrIndexNotFound

	// ErrInvalidDocument indicates a document could not be prepared for indexing.
	ErrInvalidDocument = core.ErrInvalidDocument

	// ErrUnknownKind indicates an unregistered document kind or loader.
	ErrUnknownKind = core.ErrUnknownKind

	// ErrMissingCACert indicates no CA certificate was configured for the cluster.
	ErrMissingCACert = core.ErrMissingCACert

	// ErrBulkFailed indicates some documents were rejected during bulk indexing.
	ErrBulkFailed = core.ErrBulkFailed

	// ErrInvalidMonth indicates a month was not given as YYYY-MM.
	ErrInvalidMonth = core.ErrInvalidMonth
)

// ErrNoElasticsearch is returned by operations that need a cluster when the
// client was created without one.
var ErrNoElasticsearch = errors.New("nastydata: no elasticsearch client configured")

// ErrNoStateStore is returned by Status when the client has no state store.
var ErrNoStateStore = errors.New("nastydata: no state store configured")
