// Package progress tracks how far along long-running reads and iterations are.
package progress

import (
	"io"
	"sync/atomic"
)

// Callback receives the cumulative number of bytes consumed and the expected total.
type Callback func(consumed, total int64)

// Reader counts the bytes read through it. Dump decompressors wrap the
// compressed file in a Reader so progress can be measured in file offset
// instead of decompressed size.
type Reader struct {
	reader   io.Reader
	callback Callback
	total    int64
	read     atomic.Int64
}

// NewReader wraps r. total is the expected size, or -1 if unknown.
// callback may be nil.
func NewReader(r io.Reader, total int64, callback Callback) *Reader {
	return &Reader{
		reader:   r,
		callback: callback,
		total:    total,
	}
}

func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		consumed := r.read.Add(int64(n))
		if r.callback != nil {
			r.callback(consumed, r.total)
		}
	}
	return n, err
}

// BytesRead returns the number of bytes read so far. Safe for concurrent use.
func (r *Reader) BytesRead() int64 { return r.read.Load() }

// Total returns the expected size passed to NewReader.
func (r *Reader) Total() int64 { return r.total }

// Close closes the underlying reader if it implements io.Closer.
func (r *Reader) Close() error {
	if closer, ok := r.reader.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
