package document

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/meigma/nastydata/core"
)

// IDField is the document key holding the Elasticsearch document ID after Prepare.
const IDField = "_id"

// Kind describes one kind of document: how its index is configured and how
// raw documents are turned into indexable ones.
type Kind interface {
	// Name is the registry name of the kind.
	Name() string
	// IndexSettings returns the settings for a new index of this kind.
	IndexSettings() map[string]any
	// Mapping returns the field mappings.
	Mapping() Properties
	// Prepare returns a deep copy of doc with _id set and kind-specific fixes
	// applied. The input is not modified.
	Prepare(doc core.Document) (core.Document, error)
	// MetaField names a field that records where a document came from and the
	// key identifying each source within it. Documents seen from several
	// sources accumulate a list in that field.
	MetaField() (field, idField string, ok bool)
}

// DefaultIndexSettings returns settings shared by all kinds. Indices hold
// large archives that are rarely queried, so they trade speed for size.
func DefaultIndexSettings() map[string]any {
	return map[string]any{
		"number_of_shards":   1,
		"number_of_replicas": 0,
		"codec":              "best_compression",
	}
}

// kind is the Kind implementation used by all registered kinds.
type kind struct {
	name      string
	settings  func() map[string]any
	props     Properties
	prepare   func(core.Document) error
	metaField string
	metaID    string
}

var _ Kind = (*kind)(nil)

func (k *kind) Name() string { return k.name }

func (k *kind) IndexSettings() map[string]any {
	if k.settings == nil {
		return DefaultIndexSettings()
	}
	return k.settings()
}

func (k *kind) Mapping() Properties { return k.props }

func (k *kind) Prepare(doc core.Document) (core.Document, error) {
	out := deepCopyMap(doc)
	if k.prepare != nil {
		if err := k.prepare(out); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrInvalidDocument, err)
		}
	}
	return out, nil
}

func (k *kind) MetaField() (string, string, bool) {
	return k.metaField, k.metaID, k.metaField != ""
}

var kinds = map[string]Kind{}

func register(k Kind) Kind {
	if _, dup := kinds[k.Name()]; dup {
		panic("document: duplicate kind " + k.Name())
	}
	kinds[k.Name()] = k
	return k
}

// Lookup returns the kind registered under name.
func Lookup(name string) (Kind, error) {
	k, ok := kinds[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (valid: %s)", core.ErrUnknownKind, name, strings.Join(Names(), ", "))
	}
	return k, nil
}

// Names returns the names of all registered kinds, sorted.
func Names() []string {
	return slices.Sorted(maps.Keys(kinds))
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopy(v)
	}
	return out
}

func deepCopy(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return deepCopyMap(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = deepCopy(e)
		}
		return out
	default:
		return v
	}
}
