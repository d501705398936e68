package nastybatch

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/meigma/nastydata/core"
)

const batchMeta = `{
  "id": "2d3e0f4a",
  "request": {"type": "search", "query": "trump", "since": "2019-01-01", "until": "2019-01-02", "lang": "en", "max_tweets": 1000, "batch_size": 100},
  "completed_at": "2020-03-01T14:05:12.348551"
}`

func writeXZ(t *testing.T, path, content string) {
	t.Helper()

	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func TestMetaPath(t *testing.T) {
	t.Parallel()

	got, ok := MetaPath("/data/batch/2d3e0f4a.data.jsonl.xz")
	assert.True(t, ok)
	assert.Equal(t, "/data/batch/2d3e0f4a.meta.json", got)

	_, ok = MetaPath("/data/batch/2d3e0f4a.jsonl")
	assert.False(t, ok)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	data := filepath.Join(dir, "2d3e0f4a.data.jsonl.xz")
	writeXZ(t, data, "{\"id_str\":\"1\"}\n{\"id_str\":\"2\"}\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2d3e0f4a.meta.json"), []byte(batchMeta), 0o600))

	var docs []core.Document
	for doc, err := range Load(context.Background(), data) {
		require.NoError(t, err)
		docs = append(docs, doc)
	}
	require.Len(t, docs, 2)
	assert.Equal(t, "2", docs[1]["id_str"])

	meta, ok := docs[0][MetaField].(core.Document)
	require.True(t, ok)
	assert.Equal(t, "2d3e0f4a", meta["id"])
	request := meta["request"].(map[string]any)
	assert.Equal(t, json.Number("1000"), request["max_tweets"])

	// Documents do not share the metadata map.
	meta["id"] = "changed"
	assert.Equal(t, "2d3e0f4a", docs[1][MetaField].(core.Document)["id"])
}

func TestLoad_WithoutMeta(t *testing.T) {
	t.Parallel()

	data := filepath.Join(t.TempDir(), "batch.data.jsonl.xz")
	writeXZ(t, data, "{\"id_str\":\"1\"}\n")

	n := 0
	for doc, err := range Load(context.Background(), data) {
		require.NoError(t, err)
		v, ok := doc[MetaField]
		assert.True(t, ok)
		assert.Nil(t, v)
		n++
	}
	assert.Equal(t, 1, n)
}

func TestLoad_InvalidMeta(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	data := filepath.Join(dir, "batch.data.jsonl.xz")
	writeXZ(t, data, "{\"id_str\":\"1\"}\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "batch.meta.json"), []byte("{"), 0o600))

	for _, err := range Load(context.Background(), data) {
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode batch meta")
	}
}

func TestLoad_MalformedLine(t *testing.T) {
	t.Parallel()

	data := filepath.Join(t.TempDir(), "batch.data.jsonl.xz")
	writeXZ(t, data, "{\"id_str\":\"1\"}\nnot json\n")

	var lineErr *core.LineError
	n := 0
	for _, err := range Load(context.Background(), data) {
		if err != nil {
			require.ErrorAs(t, err, &lineErr)
			break
		}
		n++
	}
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, lineErr.Line)
}
