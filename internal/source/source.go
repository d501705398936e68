// Package source maps loader names to the functions reading documents from
// dump files.
package source

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/meigma/nastydata/core"
	"github.com/meigma/nastydata/internal/decompress"
	"github.com/meigma/nastydata/internal/nastybatch"
	"github.com/meigma/nastydata/internal/pushshift"
)

// Loader reads the documents stored in a file.
type Loader func(ctx context.Context, path string, opts ...decompress.Option) core.DocumentSource

// Registry names of the loaders.
const (
	Pushshift  = "pushshift"
	NastyBatch = "nasty-batch"
)

var loaders = map[string]Loader{
	Pushshift:  pushshift.Load,
	NastyBatch: nastybatch.Load,
}

// Lookup returns the loader registered under name.
func Lookup(name string) (Loader, error) {
	l, ok := loaders[name]
	if !ok {
		return nil, fmt.Errorf("%w: loader %q (valid: %s)", core.ErrUnknownKind, name, strings.Join(Names(), ", "))
	}
	return l, nil
}

// Names returns the names of all loaders, sorted.
func Names() []string {
	return slices.Sorted(maps.Keys(loaders))
}
