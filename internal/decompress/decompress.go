// Package decompress opens dump files compressed with any codec the dumps
// have been published in, and tracks how much of the compressed file has
// been consumed.
package decompress

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/meigma/nastydata/internal/progress"
)

// zstdMaxWindow allows the long-distance windows used by later Pushshift dumps.
const zstdMaxWindow = 1 << 31

const readBufferSize = 1 << 20

// Codec identifies a compression format.
type Codec string

// Supported codecs.
const (
	None  Codec = ""
	Gzip  Codec = "gzip"
	Bzip2 Codec = "bzip2"
	XZ    Codec = "xz"
	Zstd  Codec = "zstd"
)

// CodecFor returns the codec implied by the file extension of name.
func CodecFor(name string) Codec {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz":
		return Gzip
	case ".bz2":
		return Bzip2
	case ".xz":
		return XZ
	case ".zst":
		return Zstd
	default:
		return None
	}
}

// Reader streams the decompressed content of a file.
type Reader struct {
	path    string
	codec   Codec
	file    *os.File
	counted *progress.Reader
	r       io.Reader
	closer  func()
	size    int64
}

type options struct {
	logger           *slog.Logger
	callback         progress.Callback
	warnUncompressed bool
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger for warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithProgress reports compressed bytes consumed against the file size.
func WithProgress(cb progress.Callback) Option {
	return func(o *options) { o.callback = cb }
}

// WarnUncompressed controls the warning logged when a file has no known
// compression extension. Enabled by default.
func WarnUncompressed(warn bool) Option {
	return func(o *options) { o.warnUncompressed = warn }
}

// Open opens path and selects a decompressor from its extension.
func Open(path string, opts ...Option) (*Reader, error) {
	o := options{
		logger:           slog.New(slog.DiscardHandler),
		warnUncompressed: true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dump: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat dump: %w", err)
	}

	dr := &Reader{
		path:  path,
		codec: CodecFor(path),
		file:  f,
		size:  info.Size(),
	}
	dr.counted = progress.NewReader(f, dr.size, o.callback)
	buffered := bufio.NewReaderSize(dr.counted, readBufferSize)

	switch dr.codec {
	case Gzip:
		zr, gzErr := gzip.NewReader(buffered)
		if gzErr != nil {
			f.Close()
			return nil, fmt.Errorf("open gzip stream %s: %w", path, gzErr)
		}
		dr.r = zr
		dr.closer = func() { zr.Close() }
	case Bzip2:
		dr.r = bzip2.NewReader(buffered)
	case XZ:
		xr, xzErr := xz.NewReader(buffered)
		if xzErr != nil {
			f.Close()
			return nil, fmt.Errorf("open xz stream %s: %w", path, xzErr)
		}
		dr.r = xr
	case Zstd:
		zr, zErr := zstd.NewReader(buffered,
			zstd.WithDecoderMaxWindow(zstdMaxWindow),
			zstd.WithDecoderConcurrency(1),
		)
		if zErr != nil {
			f.Close()
			return nil, fmt.Errorf("open zstd stream %s: %w", path, zErr)
		}
		dr.r = zr
		dr.closer = zr.Close
	default:
		if o.warnUncompressed {
			o.logger.Warn("reading file as uncompressed", "file", path)
		}
		dr.r = buffered
	}

	return dr, nil
}

// Read reads decompressed bytes.
func (r *Reader) Read(p []byte) (int, error) { return r.r.Read(p) }

// Tell returns the number of compressed bytes consumed so far.
func (r *Reader) Tell() int64 { return r.counted.BytesRead() }

// Size returns the size of the compressed file.
func (r *Reader) Size() int64 { return r.size }

// Codec returns the codec selected for the file.
func (r *Reader) Codec() Codec { return r.codec }

// Path returns the path the reader was opened with.
func (r *Reader) Path() string { return r.path }

// Close releases the decompressor and the file.
func (r *Reader) Close() error {
	if r.closer != nil {
		r.closer()
	}
	return r.file.Close()
}

// Lines yields the lines of r without their line terminators. A final line
// without a trailing newline is still yielded. Iteration stops after the
// first read error.
func Lines(r io.Reader) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		br, ok := r.(*bufio.Reader)
		if !ok {
			br = bufio.NewReaderSize(r, readBufferSize)
		}
		for {
			line, err := br.ReadBytes('\n')
			if len(line) > 0 {
				line = bytes.TrimRight(line, "\r\n")
				if !yield(line, nil) {
					return
				}
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
		}
	}
}
