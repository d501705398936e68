package decompress

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

const sampleLines = "{\"id\":\"a\"}\n{\"id\":\"b\"}\n{\"id\":\"c\"}\n"

func writeCompressed(t *testing.T, name string, content string) string {
	t.Helper()

	var buf bytes.Buffer
	switch CodecFor(name) {
	case Gzip:
		w := gzip.NewWriter(&buf)
		_, err := w.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case XZ:
		w, err := xz.NewWriter(&buf)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case Zstd:
		w, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	default:
		buf.WriteString(content)
	}

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestCodecFor(t *testing.T) {
	t.Parallel()

	tests := map[string]Codec{
		"RS_2011-01.zst":   Zstd,
		"RC_2006-01.bz2":   Bzip2,
		"RS_v2_2005-06.xz": XZ,
		"dump.jsonl.GZ":    Gzip,
		"batch.data.jsonl": None,
		"batch.meta.json":  None,
	}
	for name, want := range tests {
		assert.Equal(t, want, CodecFor(name), name)
	}
}

func TestOpen_Codecs(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"dump.gz", "dump.xz", "dump.zst", "dump.jsonl"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := writeCompressed(t, name, sampleLines)
			r, err := Open(path, WarnUncompressed(false))
			require.NoError(t, err)
			defer r.Close()

			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, sampleLines, string(got))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, info.Size(), r.Size())
			assert.Equal(t, r.Size(), r.Tell())
		})
	}
}

func TestOpen_Progress(t *testing.T) {
	t.Parallel()

	path := writeCompressed(t, "dump.zst", strings.Repeat(sampleLines, 100))
	var last, total int64
	r, err := Open(path, WithProgress(func(consumed, size int64) {
		last, total = consumed, size
	}))
	require.NoError(t, err)
	defer r.Close()

	_, err = io.Copy(io.Discard, r)
	require.NoError(t, err)
	assert.Equal(t, r.Size(), last)
	assert.Equal(t, r.Size(), total)
}

func TestOpen_WarnsUncompressed(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	path := writeCompressed(t, "dump.jsonl", sampleLines)
	r, err := Open(path, WithLogger(logger))
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Contains(t, logs.String(), "reading file as uncompressed")

	logs.Reset()
	r, err = Open(path, WithLogger(logger), WarnUncompressed(false))
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Empty(t, logs.String())
}

func TestOpen_Missing(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "missing.zst"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpen_CorruptGzip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dump.gz")
	require.NoError(t, os.WriteFile(path, []byte("not gzip"), 0o600))
	_, err := Open(path)
	assert.Error(t, err)
}

func TestLines(t *testing.T) {
	t.Parallel()

	var got []string
	for line, err := range Lines(strings.NewReader("one\r\ntwo\n\nthree")) {
		require.NoError(t, err)
		got = append(got, string(line))
	}
	assert.Equal(t, []string{"one", "two", "", "three"}, got)
}

func TestLines_Break(t *testing.T) {
	t.Parallel()

	count := 0
	for range Lines(strings.NewReader(sampleLines)) {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestLines_Error(t *testing.T) {
	t.Parallel()

	var errs []error
	for _, err := range Lines(failingReader{}) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0], "disk on fire")
}
