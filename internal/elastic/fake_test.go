package elastic

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/require"

	"github.com/meigma/nastydata/internal/jsonl"
)

// fakeES implements the subset of the Elasticsearch REST API the client uses.
type fakeES struct {
	mu       sync.Mutex
	indices  map[string]*fakeIndex
	requests []string

	bulk   map[string]map[string]any // document id -> update body
	reject map[string]bool
	busy   map[string]int // document id -> 429 responses left
	sends  map[string]int

	pendingPolls int
	taskPolls    int
}

type fakeIndex struct {
	settings map[string]any
	mapping  map[string]any
	aliases  map[string]bool
}

func newFakeES(t *testing.T) (*fakeES, *httptest.Server) {
	t.Helper()

	f := &fakeES{
		indices: map[string]*fakeIndex{},
		bulk:    map[string]map[string]any{},
		reject:  map[string]bool{},
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    []string{srv.URL},
		DisableRetry: true,
	})
	require.NoError(t, err)

	clock := func() time.Time { return time.Date(2020, 5, 4, 13, 2, 1, 0, time.UTC) }
	return New(es, append([]Option{WithClock(clock), WithPollInterval(time.Millisecond)}, opts...)...)
}

func (f *fakeES) addIndex(name string, mapping map[string]any, aliases ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := &fakeIndex{mapping: mapping, aliases: map[string]bool{}}
	for _, a := range aliases {
		idx.aliases[a] = true
	}
	f.indices[name] = idx
}

func (f *fakeES) rejectID(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reject[id] = true
}

// busyID answers the next n updates of id with 429.
func (f *fakeES) busyID(id string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy == nil {
		f.busy = map[string]int{}
	}
	f.busy[id] = n
}

func (f *fakeES) sendCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends[id]
}

func (f *fakeES) index(name string) *fakeIndex {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.indices[name]
}

func (f *fakeES) aliasTargets(alias string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	for name, idx := range f.indices {
		if idx.aliases[alias] {
			out = append(out, name)
		}
	}
	return out
}

func (f *fakeES) polls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.taskPolls
}

func (f *fakeES) bulkBody(id string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bulk[id]
}

func (f *fakeES) bulkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bulk)
}

func (f *fakeES) requestLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	body, _ := io.ReadAll(r.Body)
	p := strings.Trim(r.URL.Path, "/")
	parts := strings.Split(p, "/")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" /"+p)

	last := parts[len(parts)-1]
	switch {
	case last == "_bulk":
		f.handleBulk(w, body)
	case parts[0] == "_reindex":
		writeJSON(w, http.StatusOK, map[string]any{"task": "node:1"})
	case parts[0] == "_tasks":
		f.taskPolls++
		writeJSON(w, http.StatusOK, map[string]any{
			"completed": f.taskPolls > f.pendingPolls,
			"response":  map[string]any{"total": 3, "failures": []any{}},
		})
	case len(parts) == 2 && last == "_refresh":
		writeJSON(w, http.StatusOK, map[string]any{})
	case len(parts) == 2 && last == "_mapping":
		idx, ok := f.indices[parts[0]]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "index_not_found_exception"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			parts[0]: map[string]any{"mappings": map[string]any{"properties": idx.mapping}},
		})
	case len(parts) == 3 && strings.HasPrefix(parts[1], "_alias"):
		f.handleAlias(w, r.Method, parts[0], parts[2])
	case len(parts) == 1:
		f.handleIndex(w, r.Method, parts[0], body)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unexpected request " + r.Method + " " + p})
	}
}

func (f *fakeES) handleIndex(w http.ResponseWriter, method, name string, body []byte) {
	_, ok := f.indices[name]
	switch method {
	case http.MethodHead:
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		if ok {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "resource_already_exists_exception"})
			return
		}
		var req struct {
			Settings map[string]any `json:"settings"`
			Mappings struct {
				Properties map[string]any `json:"properties"`
			} `json:"mappings"`
		}
		if err := jsonl.JSON.Unmarshal(body, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		f.indices[name] = &fakeIndex{
			settings: req.Settings,
			mapping:  req.Mappings.Properties,
			aliases:  map[string]bool{},
		}
		writeJSON(w, http.StatusOK, map[string]any{"acknowledged": true, "index": name})
	case http.MethodDelete:
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "index_not_found_exception"})
			return
		}
		delete(f.indices, name)
		writeJSON(w, http.StatusOK, map[string]any{"acknowledged": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeES) handleAlias(w http.ResponseWriter, method, pattern, alias string) {
	var matched []*fakeIndex
	for name, idx := range f.indices {
		if ok, _ := path.Match(pattern, name); ok {
			matched = append(matched, idx)
		}
	}

	switch method {
	case http.MethodHead:
		for _, idx := range matched {
			if idx.aliases[alias] {
				w.WriteHeader(http.StatusOK)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	case http.MethodDelete:
		for _, idx := range matched {
			delete(idx.aliases, alias)
		}
		writeJSON(w, http.StatusOK, map[string]any{"acknowledged": true})
	case http.MethodPut, http.MethodPost:
		if len(matched) == 0 {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "index_not_found_exception"})
			return
		}
		for _, idx := range matched {
			idx.aliases[alias] = true
		}
		writeJSON(w, http.StatusOK, map[string]any{"acknowledged": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeES) handleBulk(w http.ResponseWriter, body []byte) {
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var items []any
	hasErrors := false
	for sc.Scan() {
		var action map[string]map[string]any
		if err := jsonl.JSON.Unmarshal(sc.Bytes(), &action); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		if !sc.Scan() {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing body line"})
			return
		}
		var doc map[string]any
		if err := jsonl.JSON.Unmarshal(sc.Bytes(), &doc); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}

		id, _ := action["update"]["_id"].(string)
		if f.sends == nil {
			f.sends = map[string]int{}
		}
		f.sends[id]++
		if f.busy[id] > 0 {
			f.busy[id]--
			hasErrors = true
			items = append(items, map[string]any{"update": map[string]any{
				"_id":    id,
				"status": http.StatusTooManyRequests,
				"error": map[string]any{
					"type":   "es_rejected_execution_exception",
					"reason": "rejected execution of coordinating operation",
				},
			}})
			continue
		}
		if f.reject[id] {
			hasErrors = true
			items = append(items, map[string]any{"update": map[string]any{
				"_id":    id,
				"status": http.StatusBadRequest,
				"error": map[string]any{
					"type":   "mapper_parsing_exception",
					"reason": "failed to parse",
				},
			}})
			continue
		}
		f.bulk[id] = doc
		items = append(items, map[string]any{"update": map[string]any{
			"_id":    id,
			"status": http.StatusCreated,
			"result": "created",
		}})
	}

	writeJSON(w, http.StatusOK, map[string]any{"took": 1, "errors": hasErrors, "items": items})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, _ := jsonl.JSON.Marshal(v)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
