package elastic

import (
	"context"
	"encoding/pem"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/nastydata/core"
	"github.com/meigma/nastydata/internal/document"
	"github.com/meigma/nastydata/internal/jsonl"
)

func TestConnect_MissingCACert(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.CACertPath = filepath.Join(t.TempDir(), "ca.crt")
	_, err := Connect(cfg)
	require.ErrorIs(t, err, core.ErrMissingCACert)

	cfg.CACertPath = ""
	_, err = Connect(cfg)
	require.ErrorIs(t, err, core.ErrMissingCACert)
}

func TestConnect_InvalidCACert(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.CACertPath = filepath.Join(t.TempDir(), "ca.crt")
	require.NoError(t, os.WriteFile(cfg.CACertPath, []byte("not a certificate"), 0o600))
	_, err := Connect(cfg)
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrMissingCACert)
}

func TestConnect_TLSAndBasicAuth(t *testing.T) {
	t.Parallel()

	fake := &fakeES{indices: map[string]*fakeIndex{}, bulk: map[string]map[string]any{}, reject: map[string]bool{}}
	fake.addIndex("reddit", nil)

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "elastic" || pass != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fake.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	caPath := filepath.Join(t.TempDir(), "ca.crt")
	caPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(caPath, caPEM, 0o600))

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Host = host
	cfg.Port = port
	cfg.Password = "s3cret"
	cfg.CACertPath = caPath
	cfg.MaxRetries = 0

	c, err := Connect(cfg)
	require.NoError(t, err)
	require.NoError(t, c.EnsureIndexExists(context.Background(), "reddit"))
	assert.ErrorIs(t, c.EnsureIndexExists(context.Background(), "twitter"), core.ErrIndexNotFound)
}

func TestConfig_Address(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://localhost:9200", DefaultConfig().Address())
	assert.Equal(t, "https://[::1]:9201", Config{Host: "::1", Port: 9201}.Address())
}

func TestNewIndex_UpdatesAlias(t *testing.T) {
	t.Parallel()

	fake, srv := newFakeES(t)
	fake.addIndex("reddit-20200101-000000", nil, "reddit")
	fake.addIndex("twitter-20200101-000000", nil, "twitter")
	c := newTestClient(t, srv)

	name, err := c.NewIndex(context.Background(), "reddit", document.Reddit, NewIndexOptions{UpdateAlias: true})
	require.NoError(t, err)
	assert.Equal(t, "reddit-20200504-130201", name)

	idx := fake.index(name)
	require.NotNil(t, idx)
	assert.Equal(t, "best_compression", idx.settings["codec"])
	assert.Contains(t, idx.mapping, "selftext")

	assert.Equal(t, []string{name}, fake.aliasTargets("reddit"))
	assert.Equal(t, []string{"twitter-20200101-000000"}, fake.aliasTargets("twitter"))
}

func TestNewIndex_WithoutAlias(t *testing.T) {
	t.Parallel()

	fake, srv := newFakeES(t)
	fake.addIndex("reddit-20200101-000000", nil, "reddit")
	c := newTestClient(t, srv)

	_, err := c.NewIndex(context.Background(), "reddit", document.Reddit, NewIndexOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"reddit-20200101-000000"}, fake.aliasTargets("reddit"))
	for _, req := range fake.requestLog() {
		assert.NotContains(t, req, "_alias")
	}
}

func TestNewIndex_MoveData(t *testing.T) {
	t.Parallel()

	fake, srv := newFakeES(t)
	fake.pendingPolls = 2
	fake.addIndex("reddit-20200101-000000", nil, "reddit")
	c := newTestClient(t, srv)

	name, err := c.NewIndex(context.Background(), "reddit", document.Reddit, NewIndexOptions{MoveData: true, UpdateAlias: true})
	require.NoError(t, err)

	reqs := fake.requestLog()
	assert.Contains(t, reqs, "POST /_reindex")
	assert.Contains(t, reqs, "POST /"+name+"/_refresh")
	assert.Equal(t, 3, fake.polls())
}

func TestNewIndex_CreateFails(t *testing.T) {
	t.Parallel()

	fake, srv := newFakeES(t)
	fake.addIndex("reddit-20200504-130201", nil)
	c := newTestClient(t, srv)

	_, err := c.NewIndex(context.Background(), "reddit", document.Reddit, NewIndexOptions{})
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, http.StatusBadRequest, respErr.StatusCode)
	assert.Contains(t, respErr.Body, "resource_already_exists_exception")
}

func TestUpsertOp_WithoutMeta(t *testing.T) {
	t.Parallel()

	action, err := UpsertOp("reddit", document.Reddit, core.Document{
		"id":          "abc",
		"title":       "hello",
		"created_utc": 1293840000,
	})
	require.NoError(t, err)
	assert.Equal(t, "reddit", action.Index)
	assert.Equal(t, "t1_abc", action.ID)
	assert.Equal(t, map[string]any{
		"doc": map[string]any{
			"id":          "abc",
			"title":       "hello",
			"created_utc": "2011-01-01T00:00:00Z",
		},
		"doc_as_upsert": true,
	}, action.Body)
}

func TestUpsertOp_NullMeta(t *testing.T) {
	t.Parallel()

	action, err := UpsertOp("reddit", document.PushshiftReddit, core.Document{
		"id":                  "abc",
		"body":                "hi",
		"pushshift_dump_meta": nil,
	})
	require.NoError(t, err)
	assert.Equal(t, true, action.Body["doc_as_upsert"])
	assert.NotContains(t, action.Body["doc"], "pushshift_dump_meta")
}

func TestUpsertOp_WithMeta(t *testing.T) {
	t.Parallel()

	meta := map[string]any{"dump_file": "RC_2011-01.zst", "dump_type": "COMMENTS", "dump_date": "2011-01-01"}
	action, err := UpsertOp("reddit", document.PushshiftReddit, core.Document{
		"id":                  "abc",
		"body":                "hi",
		"pushshift_dump_meta": meta,
	})
	require.NoError(t, err)
	assert.Equal(t, "t3_abc", action.ID)

	upsert := action.Body["upsert"].(map[string]any)
	assert.Equal(t, "hi", upsert["body"])
	assert.NotContains(t, upsert, document.IDField)

	script := action.Body["script"].(map[string]any)
	assert.Equal(t, "painless", script["lang"])
	assert.Equal(t, map[string]any{"meta_field": map[string]any{
		"dump_file": "RC_2011-01.zst",
		"dump_type": "COMMENTS",
		"dump_date": "2011-01-01T00:00:00Z",
	}}, script["params"])

	source := script["source"].(string)
	assert.Contains(t, source, "ctx._source.pushshift_dump_meta == null")
	assert.Contains(t, source, "meta_field.dump_file == params.meta_field.dump_file")
	assert.NotContains(t, source, "{field}")
	assert.NotContains(t, source, "{id}")
}

func TestUpsertOp_Invalid(t *testing.T) {
	t.Parallel()

	_, err := UpsertOp("reddit", document.Reddit, core.Document{"id": "abc"})
	assert.ErrorIs(t, err, core.ErrInvalidDocument)
}

func sourceOf(items ...core.Document) core.DocumentSource {
	return func(yield func(core.Document, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

func TestAddDocuments(t *testing.T) {
	t.Parallel()

	fake, srv := newFakeES(t)
	fake.addIndex("reddit", nil)
	fake.rejectID("t1_c")
	c := newTestClient(t, srv)

	meta := map[string]any{"dump_file": "RS_2011-01.zst", "dump_type": "LINKS", "dump_date": "2011-01-01"}
	stats, err := c.AddDocuments(context.Background(), "reddit", document.PushshiftReddit, sourceOf(
		core.Document{"id": "a", "title": "one", "pushshift_dump_meta": meta},
		core.Document{"id": "b", "title": "two", "pushshift_dump_meta": nil},
		core.Document{"id": "c", "title": "three", "pushshift_dump_meta": meta},
	), AddOptions{Workers: 2})

	var bulkErr *core.BulkError
	require.ErrorAs(t, err, &bulkErr)
	assert.ErrorIs(t, err, core.ErrBulkFailed)
	assert.Equal(t, core.IndexStats{Added: 3, Succeeded: 2, Failed: 1}, stats)
	assert.Equal(t, []string{"t1_c: mapper_parsing_exception: failed to parse"}, bulkErr.Items)
	assert.Equal(t, "failed to index 1 documents (2 succeeded)", bulkErr.Error())

	assert.Contains(t, fake.bulkBody("t1_a"), "script")
	assert.Contains(t, fake.bulkBody("t1_a"), "upsert")
	assert.Equal(t, true, fake.bulkBody("t1_b")["doc_as_upsert"])
}

func TestAddDocuments_AllSucceed(t *testing.T) {
	t.Parallel()

	fake, srv := newFakeES(t)
	fake.addIndex("tweets", nil)
	c := newTestClient(t, srv)

	stats, err := c.AddDocuments(context.Background(), "tweets", document.Twitter, sourceOf(
		core.Document{"id_str": "1", "full_text": "a"},
		core.Document{"id_str": "2", "full_text": "b"},
	), AddOptions{})
	require.NoError(t, err)
	assert.Equal(t, core.IndexStats{Added: 2, Succeeded: 2}, stats)
	assert.Equal(t, 2, fake.bulkCount())
}

func TestAddDocuments_RetriesBusy(t *testing.T) {
	t.Parallel()

	fake, srv := newFakeES(t)
	fake.addIndex("tweets", nil)
	fake.busyID("a", 1)
	fake.busyID("b", 1)
	fake.busyID("c", 2)
	c := newTestClient(t, srv, WithBulkRetry(3, time.Millisecond))

	stats, err := c.AddDocuments(context.Background(), "tweets", document.Twitter, sourceOf(
		core.Document{"id_str": "a", "full_text": "one"},
		core.Document{"id_str": "b", "full_text": "two"},
		core.Document{"id_str": "c", "full_text": "three"},
	), AddOptions{Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, core.IndexStats{Added: 3, Succeeded: 3}, stats)
	assert.Equal(t, 2, fake.sendCount("a"))
	assert.Equal(t, 2, fake.sendCount("b"))
	assert.Equal(t, 3, fake.sendCount("c"))
	assert.Equal(t, 3, fake.bulkCount())
}

func TestAddDocuments_BusyRetriesExhausted(t *testing.T) {
	t.Parallel()

	fake, srv := newFakeES(t)
	fake.addIndex("tweets", nil)
	fake.busyID("a", 10)
	c := newTestClient(t, srv, WithBulkRetry(2, time.Millisecond))

	stats, err := c.AddDocuments(context.Background(), "tweets", document.Twitter, sourceOf(
		core.Document{"id_str": "a", "full_text": "one"},
		core.Document{"id_str": "b", "full_text": "two"},
	), AddOptions{Workers: 1})

	var bulkErr *core.BulkError
	require.ErrorAs(t, err, &bulkErr)
	assert.Equal(t, core.IndexStats{Added: 2, Succeeded: 1, Failed: 1}, stats)
	assert.Equal(t, []string{"a: es_rejected_execution_exception: rejected execution of coordinating operation"}, bulkErr.Items)
	assert.Equal(t, 3, fake.sendCount("a"))
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 500*time.Millisecond, backoff(500*time.Millisecond, maxBulkBackoff, 1))
	assert.Equal(t, 2*time.Second, backoff(500*time.Millisecond, maxBulkBackoff, 3))
	assert.Equal(t, maxBulkBackoff, backoff(500*time.Millisecond, maxBulkBackoff, 200))
}

func TestAddDocuments_MissingIndex(t *testing.T) {
	t.Parallel()

	_, srv := newFakeES(t)
	c := newTestClient(t, srv)

	_, err := c.AddDocuments(context.Background(), "reddit", document.Reddit, sourceOf(), AddOptions{})
	assert.ErrorIs(t, err, core.ErrIndexNotFound)
}

func TestAddDocuments_SourceError(t *testing.T) {
	t.Parallel()

	fake, srv := newFakeES(t)
	fake.addIndex("reddit", nil)
	c := newTestClient(t, srv)

	boom := errors.New("truncated dump")
	src := func(yield func(core.Document, error) bool) {
		if !yield(core.Document{"id": "a", "title": "t"}, nil) {
			return
		}
		yield(nil, boom)
	}
	_, err := c.AddDocuments(context.Background(), "reddit", document.Reddit, src, AddOptions{Workers: 1})
	assert.ErrorIs(t, err, boom)
}

func TestAddDocuments_InvalidDocument(t *testing.T) {
	t.Parallel()

	fake, srv := newFakeES(t)
	fake.addIndex("reddit", nil)
	c := newTestClient(t, srv)

	_, err := c.AddDocuments(context.Background(), "reddit", document.Reddit, sourceOf(
		core.Document{"id": "a"},
	), AddOptions{Workers: 1})
	assert.ErrorIs(t, err, core.ErrInvalidDocument)
}

func TestMappingDiff(t *testing.T) {
	t.Parallel()

	current := map[string]any{
		"a":   map[string]any{"type": "keyword"},
		"b":   map[string]any{"type": "text"},
		"dyn": map[string]any{"type": "keyword"},
		"obj": map[string]any{"properties": map[string]any{
			"x": map[string]any{"type": "long"},
			"y": map[string]any{"type": "keyword"},
		}},
	}
	induced := map[string]any{
		"a": map[string]any{"type": "keyword"},
		"b": map[string]any{"type": "keyword"},
		"obj": map[string]any{"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		}},
		"new": map[string]any{"type": "date"},
	}

	assert.Equal(t, []string{
		"b:",
		"  [current]",
		`    "type": "text"`,
		"  [induced]",
		`    "type": "keyword"`,
		"dyn: only exists in current dynamic mapping.",
		"  [current]",
		`    "type": "keyword"`,
		"obj:",
		"  x:",
		"    [current]",
		`      "type": "long"`,
		"    [induced]",
		`      "type": "integer"`,
		"  y: only exists in current dynamic mapping.",
		"    [current]",
		`      "type": "keyword"`,
		"new: only exists in induced mapping.",
		"  [induced]",
		`    "type": "date"`,
	}, MappingDiff(current, induced))

	// The inputs are not modified.
	assert.Len(t, induced, 4)
	assert.Empty(t, MappingDiff(current, current))
}

func TestAnalyzeIndex(t *testing.T) {
	t.Parallel()

	fake, srv := newFakeES(t)

	// The current mapping is the kind's mapping plus one dynamically added field.
	data, err := jsonl.JSON.Marshal(document.Reddit.Mapping().Mapping())
	require.NoError(t, err)
	var current map[string]any
	require.NoError(t, jsonl.JSON.Unmarshal(data, &current))
	current["flair_extra"] = map[string]any{"type": "keyword"}
	fake.addIndex("reddit", current)

	c := newTestClient(t, srv)
	lines, err := c.AnalyzeIndex(context.Background(), "reddit", document.Reddit)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"flair_extra: only exists in current dynamic mapping.",
		"  [current]",
		`    "type": "keyword"`,
	}, lines)

	assert.Nil(t, fake.index("reddit-induced-20200504-130201"), "induced index must be deleted")
	assert.Contains(t, fake.requestLog(), "DELETE /reddit-induced-20200504-130201")
}

func TestAnalyzeIndex_MissingIndex(t *testing.T) {
	t.Parallel()

	fake, srv := newFakeES(t)
	c := newTestClient(t, srv)

	_, err := c.AnalyzeIndex(context.Background(), "reddit", document.Reddit)
	require.ErrorIs(t, err, core.ErrIndexNotFound)
	assert.Equal(t, []string{"HEAD /reddit"}, fake.requestLog())
}
