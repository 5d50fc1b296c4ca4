package elasticsearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"waste_portal_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeES answers the handful of endpoints the report index uses.
type fakeES struct {
	mu        sync.Mutex
	indexed   map[string]ReportDocument
	created   bool
	searchFor string
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/":
		_, _ = io.WriteString(w, `{"version":{"number":"8.13.0"},"tagline":"You Know, for Search"}`)
	case r.Method == http.MethodHead && r.URL.Path == "/reports":
		if f.created {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	case r.Method == http.MethodPut && r.URL.Path == "/reports":
		f.created = true
		_, _ = io.WriteString(w, `{"acknowledged":true}`)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/reports/_doc/"):
		var doc ReportDocument
		_ = json.NewDecoder(r.Body).Decode(&doc)
		f.indexed[strings.TrimPrefix(r.URL.Path, "/reports/_doc/")] = doc
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"result":"created"}`)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/reports/_doc/"):
		id := strings.TrimPrefix(r.URL.Path, "/reports/_doc/")
		if _, ok := f.indexed[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"result":"not_found"}`)
			return
		}
		delete(f.indexed, id)
		_, _ = io.WriteString(w, `{"result":"deleted"}`)
	case strings.HasSuffix(r.URL.Path, "/_search"):
		body, _ := io.ReadAll(r.Body)
		f.searchFor = string(body)
		_, _ = io.WriteString(w, `{"hits":{"total":{"value":2},"hits":[{"_id":"b"},{"_id":"a"}]}}`)
	default:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"type":"illegal_argument_exception","reason":"unexpected call"}}`)
	}
}

func newTestIndex(t *testing.T) (*ReportIndex, *fakeES) {
	t.Helper()
	fake := &fakeES{indexed: map[string]ReportDocument{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := NewClient(&config.Config{ElasticsearchURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)
	return NewReportIndex(client, zap.NewNop()), fake
}

func TestNewClient_DisabledWithoutURL(t *testing.T) {
	client, err := NewClient(&config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, client)
	assert.Nil(t, NewReportIndex(client, zap.NewNop()))
}

func TestReportIndex_EnsureIndexCreatesOnce(t *testing.T) {
	idx, fake := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.EnsureIndex(ctx))
	assert.True(t, fake.created)
	require.NoError(t, idx.EnsureIndex(ctx))
}

func TestReportIndex_IndexDeleteSearch(t *testing.T) {
	idx, fake := newTestIndex(t)
	ctx := context.Background()

	doc := ReportDocument{
		ID:          "a",
		Title:       "Overflowing bin",
		Category:    "overflow",
		Status:      "pending",
		Coordinates: &GeoPoint{Lat: 6.5, Lon: 3.4},
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, idx.Index(ctx, doc))
	assert.Equal(t, "Overflowing bin", fake.indexed["a"].Title)
	assert.Equal(t, 6.5, fake.indexed["a"].Coordinates.Lat)

	ids, total, err := idx.Search(ctx, "bin", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids)
	assert.EqualValues(t, 2, total)
	assert.Contains(t, fake.searchFor, `"multi_match"`)

	require.NoError(t, idx.Delete(ctx, "a"))
	require.NoError(t, idx.Delete(ctx, "a"))
	assert.Empty(t, fake.indexed)
}
