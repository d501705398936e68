// Package document describes how documents of each supported kind are mapped,
// prepared and cleaned before they are sent to Elasticsearch.
package document

import "maps"

// coercion selects how Clean converts a field value.
type coercion int

const (
	coerceNone coercion = iota
	coerceDate
	coerceRedditDate
	coerceRedditDateMillis
	coerceJSONString
	coerceInteger
	coerceFloat
	coerceBoolean
)

// Field is the mapping of a single document field.
type Field struct {
	// Type is the Elasticsearch field type, e.g. "keyword" or "nested".
	Type string
	// Properties holds the sub-fields of object and nested fields.
	Properties Properties
	// Fields holds multi-fields, e.g. an alternatively analyzed copy of a text field.
	Fields Properties

	params map[string]any
	coerce coercion
}

// Properties maps field names to their mapping.
type Properties map[string]Field

// FieldOption configures a Field.
type FieldOption func(*Field)

func newField(typ string, c coercion, opts []FieldOption) Field {
	f := Field{Type: typ, coerce: c}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

func (f *Field) setParam(key string, value any) {
	if f.params == nil {
		f.params = make(map[string]any)
	}
	f.params[key] = value
}

// NoDocValues disables doc values, so the field cannot be sorted or aggregated on.
func NoDocValues() FieldOption {
	return func(f *Field) { f.setParam("doc_values", false) }
}

// NoIndex disables indexing, so the field cannot be searched.
func NoIndex() FieldOption {
	return func(f *Field) { f.setParam("index", false) }
}

// StoredOnly disables both doc values and indexing. The value is only kept in _source.
func StoredOnly() FieldOption {
	return func(f *Field) {
		f.setParam("doc_values", false)
		f.setParam("index", false)
	}
}

// Analyzer sets the analyzer of a text field.
func Analyzer(name string) FieldOption {
	return func(f *Field) { f.setParam("analyzer", name) }
}

// IndexOptions sets what a text field indexes, e.g. "offsets".
func IndexOptions(opt string) FieldOption {
	return func(f *Field) { f.setParam("index_options", opt) }
}

// IndexPhrases toggles indexing of two-term word combinations.
func IndexPhrases(enabled bool) FieldOption {
	return func(f *Field) { f.setParam("index_phrases", enabled) }
}

// TermVector sets which term vectors are stored, e.g. "with_positions_offsets".
func TermVector(tv string) FieldOption {
	return func(f *Field) { f.setParam("term_vector", tv) }
}

// SubField adds a multi-field.
func SubField(name string, sub Field) FieldOption {
	return func(f *Field) {
		if f.Fields == nil {
			f.Fields = make(Properties)
		}
		f.Fields[name] = sub
	}
}

// Keyword is an exact-value string field.
func Keyword(opts ...FieldOption) Field { return newField("keyword", coerceNone, opts) }

// Text is a full-text field.
func Text(opts ...FieldOption) Field { return newField("text", coerceNone, opts) }

// Date is a date field. String values are parsed in common layouts; numbers
// are epoch milliseconds.
func Date(opts ...FieldOption) Field { return newField("date", coerceDate, opts) }

// RedditDate is a date field for Reddit data. Numbers and numeric strings are
// epoch seconds. Booleans, which some legacy fields hold, become 0001-01-01
// (false) and 0001-01-02 (true).
func RedditDate(opts ...FieldOption) Field { return newField("date", coerceRedditDate, opts) }

// RedditDateMillis is RedditDate for fields holding epoch milliseconds.
func RedditDateMillis(opts ...FieldOption) Field {
	return newField("date", coerceRedditDateMillis, opts)
}

// Boolean is a boolean field.
func Boolean(opts ...FieldOption) Field { return newField("boolean", coerceBoolean, opts) }

// Short is a 16-bit integer field.
func Short(opts ...FieldOption) Field { return newField("short", coerceInteger, opts) }

// Integer is a 32-bit integer field.
func Integer(opts ...FieldOption) Field { return newField("integer", coerceInteger, opts) }

// Long is a 64-bit integer field.
func Long(opts ...FieldOption) Field { return newField("long", coerceInteger, opts) }

// Float is a 32-bit floating point field.
func Float(opts ...FieldOption) Field { return newField("float", coerceFloat, opts) }

// Object is a field holding a JSON object.
func Object(props Properties, opts ...FieldOption) Field {
	f := newField("object", coerceNone, opts)
	f.Properties = props
	return f
}

// Nested is a field holding a list of objects that are indexed independently.
func Nested(props Properties, opts ...FieldOption) Field {
	f := newField("nested", coerceNone, opts)
	f.Properties = props
	return f
}

// JSONString is a keyword field whose value is stored as its JSON encoding.
// It holds values whose structure varies too much to be mapped.
func JSONString(opts ...FieldOption) Field { return newField("keyword", coerceJSONString, opts) }

func (f Field) isObject() bool { return f.Type == "object" || f.Type == "nested" }

// Mapping returns the Elasticsearch mapping of the field.
func (f Field) Mapping() map[string]any {
	m := make(map[string]any, len(f.params)+3)
	maps.Copy(m, f.params)
	m["type"] = f.Type
	if f.isObject() && len(f.Properties) > 0 {
		m["properties"] = f.Properties.Mapping()
	}
	if len(f.Fields) > 0 {
		m["fields"] = f.Fields.Mapping()
	}
	return m
}

// Mapping returns the Elasticsearch mapping of all properties.
func (p Properties) Mapping() map[string]any {
	m := make(map[string]any, len(p))
	for name, f := range p {
		m[name] = f.Mapping()
	}
	return m
}

// With returns a copy of p with extra added. Fields in extra win.
func (p Properties) With(extra Properties) Properties {
	out := maps.Clone(p)
	if out == nil {
		out = make(Properties, len(extra))
	}
	maps.Copy(out, extra)
	return out
}
