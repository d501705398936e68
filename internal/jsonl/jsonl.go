// Package jsonl decodes and encodes newline-delimited JSON documents.
package jsonl

import (
	"bytes"
	"context"
	"errors"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/meigma/nastydata/core"
	"github.com/meigma/nastydata/internal/decompress"
)

// JSON is the codec used for dump documents. Numbers are kept as json.Number
// so 64-bit tweet ids survive a round trip. Map keys are sorted so output is
// stable.
var JSON = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	UseNumber:              true,
	ValidateJsonRawMessage: true,
}.Froze()

// ctxCheckInterval is how many lines are decoded between context checks.
const ctxCheckInterval = 1024

var errEmptyLine = errors.New("empty line")

// Decode yields one document per line of r. name identifies the source in
// errors. Leading NUL characters are stripped from each line; some dumps
// contain them. Decoding stops at the first malformed line, which is
// reported as a *core.LineError with a 1-based line number.
func Decode(ctx context.Context, r io.Reader, name string) core.DocumentSource {
	return func(yield func(core.Document, error) bool) {
		lineNo := 0
		for line, err := range decompress.Lines(r) {
			lineNo++
			if err != nil {
				yield(nil, &core.LineError{File: name, Line: lineNo, Err: err})
				return
			}
			if lineNo%ctxCheckInterval == 0 {
				if ctxErr := ctx.Err(); ctxErr != nil {
					yield(nil, ctxErr)
					return
				}
			}

			line = bytes.TrimLeft(line, "\x00")
			if len(bytes.TrimSpace(line)) == 0 {
				yield(nil, &core.LineError{File: name, Line: lineNo, Err: errEmptyLine})
				return
			}

			var doc core.Document
			if err := JSON.Unmarshal(line, &doc); err != nil {
				yield(nil, &core.LineError{File: name, Line: lineNo, Err: err})
				return
			}
			if doc == nil {
				yield(nil, &core.LineError{File: name, Line: lineNo, Err: errors.New("not a JSON object")})
				return
			}
			if !yield(doc, nil) {
				return
			}
		}
	}
}

// Encoder writes documents one per line.
type Encoder struct {
	stream *jsoniter.Stream
}

// NewEncoder returns an Encoder writing to w. Call Flush when done.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{stream: jsoniter.NewStream(JSON, w, 64*1024)}
}

// Encode writes doc followed by a newline.
func (e *Encoder) Encode(doc core.Document) error {
	e.stream.WriteVal(doc)
	e.stream.WriteRaw("\n")
	if e.stream.Error != nil {
		return e.stream.Error
	}
	if e.stream.Buffered() >= 32*1024 {
		return e.stream.Flush()
	}
	return nil
}

// Flush writes any buffered output.
func (e *Encoder) Flush() error {
	if e.stream.Error != nil {
		return e.stream.Error
	}
	return e.stream.Flush()
}
