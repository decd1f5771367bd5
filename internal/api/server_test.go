package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marksync/internal/engine"
	"github.com/roach88/marksync/internal/ir"
	"github.com/roach88/marksync/internal/source"
	"github.com/roach88/marksync/internal/store"
	"github.com/roach88/marksync/internal/testutil"
)

const exportHTML = `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<DL><p>
    <DT><H3>Work</H3>
    <DL><p>
        <DT><A HREF="https://a.com">A</A>
        <DT><A HREF="https://b.com">B</A>
    </DL><p>
</DL><p>
`

type testServer struct {
	handler http.Handler
	store   *store.Store
	export  string
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	export := filepath.Join(dir, "bookmarks.html")
	require.NoError(t, os.WriteFile(export, []byte(exportHTML), 0o644))

	e := engine.New(s,
		engine.WithIDGenerator(testutil.NewSequentialIDs("id")),
		engine.WithClock(testutil.NewStepClock(testutil.Epoch, time.Second)),
	)
	return &testServer{handler: New(e, opts...).Handler(), store: s, export: export}
}

// do sends a request and decodes the envelope, returning its raw data.
func (ts *testServer) do(t *testing.T, method, path string, body any) (int, Response, json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var raw struct {
		Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw), rec.Body.String())
	return rec.Code, raw.Response, raw.Data
}

func decode[T any](t *testing.T, data json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

func TestSync_StagesBatch(t *testing.T) {
	ts := newTestServer(t)

	code, resp, data := ts.do(t, http.MethodPost, "/sync/html", map[string]string{"path": ts.export, "profile": "work"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, StatusSuccess, resp.Status)

	res := decode[engine.ReconcileResult](t, data)
	assert.Equal(t, ir.FamilyHTML, res.Batch.Family)
	assert.Equal(t, "work", res.Batch.Profile)
	assert.Equal(t, ir.BatchPendingReview, res.Batch.Status)
	assert.Equal(t, 2, res.Counts.New)
}

func TestSync_FamilyIsCaseFolded(t *testing.T) {
	ts := newTestServer(t)

	code, _, data := ts.do(t, http.MethodPost, "/sync/Netscape", map[string]string{"path": ts.export})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, ir.FamilyHTML, decode[engine.ReconcileResult](t, data).Batch.Family)
}

func TestSync_Errors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		path string
		body any
		code int
		want engine.ErrorCode
	}{
		{"unknown family", "/sync/safari", map[string]string{"path": ts.export}, http.StatusBadRequest, engine.CodeInvalidInput},
		{"no path", "/sync/chrome", map[string]string{}, http.StatusBadRequest, engine.CodeInvalidInput},
		{"unknown field", "/sync/html", map[string]any{"path": ts.export, "bogus": 1}, http.StatusBadRequest, engine.CodeInvalidInput},
		{"missing file", "/sync/html", map[string]string{"path": filepath.Join(t.TempDir(), "nope.html")}, http.StatusUnprocessableEntity, engine.CodeSourceRead},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp, _ := ts.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, StatusError, resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(tt.want), resp.Error.Code)
		})
	}
}

func TestSync_DefaultPath(t *testing.T) {
	var gotPath string
	readers := func(family ir.SourceFamily, path string) (source.Reader, error) {
		gotPath = path
		return source.New(ir.FamilyHTML, path)
	}
	ts := newTestServer(t, WithReaders(readers))
	// WithDefaultPath needs the export path, which exists only after setup.
	ts.handler = New(engine.New(ts.store), WithReaders(readers), WithDefaultPath(ir.FamilyHTML, ts.export)).Handler()

	code, _, _ := ts.do(t, http.MethodPost, "/sync/html", nil)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, ts.export, gotPath)
}

func TestSync_ReaderFactoryFailure(t *testing.T) {
	ts := newTestServer(t, WithReaders(func(ir.SourceFamily, string) (source.Reader, error) {
		return nil, errors.New("no such profile")
	}))

	code, resp, _ := ts.do(t, http.MethodPost, "/sync/firefox", map[string]string{"path": "/nowhere"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, string(engine.CodeSourceRead), resp.Error.Code)
	assert.Equal(t, "/nowhere", resp.Error.Details["source"])
}

func TestCommitFlow(t *testing.T) {
	ts := newTestServer(t)

	_, _, data := ts.do(t, http.MethodPost, "/sync/html", map[string]string{"path": ts.export})
	batchID := decode[engine.ReconcileResult](t, data).Batch.ID

	code, _, data := ts.do(t, http.MethodGet, "/sync/batch/"+batchID, nil)
	require.Equal(t, http.StatusOK, code)
	var view struct {
		ID      string `json:"id"`
		Status  string `json:"status"`
		Changes []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"changes"`
	}
	require.NoError(t, json.Unmarshal(data, &view))
	assert.Equal(t, batchID, view.ID)
	require.Len(t, view.Changes, 2)
	assert.Equal(t, "new", view.Changes[0].Type)

	// Partial commit keeps the batch open.
	code, _, data = ts.do(t, http.MethodPost, "/sync/commit/"+batchID, map[string]any{"change_ids": []string{view.Changes[0].ID}})
	require.Equal(t, http.StatusOK, code)
	res := decode[engine.CommitResult](t, data)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 1, res.Remaining)
	assert.Equal(t, ir.BatchPendingReview, res.Status)

	// An empty body commits the rest.
	code, _, data = ts.do(t, http.MethodPost, "/sync/commit/"+batchID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, ir.BatchCommitted, decode[engine.CommitResult](t, data).Status)

	code, resp, _ := ts.do(t, http.MethodPost, "/sync/commit/"+batchID, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, string(engine.CodeAlreadyProcessed), resp.Error.Code)

	// Resync is empty.
	_, _, data = ts.do(t, http.MethodPost, "/sync/html", map[string]string{"path": ts.export})
	assert.Equal(t, 0, decode[engine.ReconcileResult](t, data).Counts.Total())
}

func TestListBatches(t *testing.T) {
	ts := newTestServer(t)
	_, _, data := ts.do(t, http.MethodPost, "/sync/html", map[string]string{"path": ts.export})
	first := decode[engine.ReconcileResult](t, data).Batch.ID
	ts.do(t, http.MethodPost, "/sync/html", map[string]string{"path": ts.export})

	code, _, _ := ts.do(t, http.MethodPost, "/sync/reject/"+first, nil)
	require.Equal(t, http.StatusOK, code)

	code, _, data = ts.do(t, http.MethodGet, "/sync/batches?status=pending_review", nil)
	require.Equal(t, http.StatusOK, code)
	pending := decode[[]engine.BatchSummary](t, data)
	require.Len(t, pending, 1)
	assert.NotEqual(t, first, pending[0].ID)
	assert.Equal(t, 2, pending[0].Counts.New)

	code, _, data = ts.do(t, http.MethodGet, "/sync/batches", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]engine.BatchSummary](t, data), 2)

	code, resp, _ := ts.do(t, http.MethodGet, "/sync/batches?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, string(engine.CodeInvalidInput), resp.Error.Code)
}

func TestBookmarksAndRevert(t *testing.T) {
	ts := newTestServer(t)
	_, _, data := ts.do(t, http.MethodPost, "/sync/html", map[string]string{"path": ts.export})
	ts.do(t, http.MethodPost, "/sync/commit/"+decode[engine.ReconcileResult](t, data).Batch.ID, nil)

	code, _, data := ts.do(t, http.MethodGet, "/bookmarks?q=A.COM&family=html", nil)
	require.Equal(t, http.StatusOK, code)
	list := decode[[]ir.Bookmark](t, data)
	require.Len(t, list, 1)
	b := list[0]
	assert.Equal(t, "https://a.com", b.URL)
	assert.Equal(t, "Work", b.FolderPath)

	// Rename on the source and sync again.
	renamed := bytes.Replace([]byte(exportHTML), []byte(">A<"), []byte(">Alpha<"), 1)
	require.NoError(t, os.WriteFile(ts.export, renamed, 0o644))
	_, _, data = ts.do(t, http.MethodPost, "/sync/html", map[string]string{"path": ts.export})
	ts.do(t, http.MethodPost, "/sync/commit/"+decode[engine.ReconcileResult](t, data).Batch.ID, nil)

	code, _, data = ts.do(t, http.MethodGet, "/bookmarks/"+b.ID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Alpha", decode[ir.Bookmark](t, data).Title)

	code, _, data = ts.do(t, http.MethodGet, "/bookmarks/"+b.ID+"/history", nil)
	require.Equal(t, http.StatusOK, code)
	history := decode[[]ir.HistorySnapshot](t, data)
	require.Len(t, history, 1)
	assert.Equal(t, "A", history[0].Title)

	code, _, data = ts.do(t, http.MethodPost, "/bookmarks/"+b.ID+"/revert/"+history[0].ID, nil)
	require.Equal(t, http.StatusOK, code)
	reverted := decode[ir.Bookmark](t, data)
	assert.Equal(t, "A", reverted.Title)
	assert.Equal(t, int64(3), reverted.Version)

	code, _, data = ts.do(t, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, engine.Stats{Bookmarks: 2}, decode[engine.Stats](t, data))
}

func TestErrorStatuses(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		method string
		path   string
		code   int
	}{
		{http.MethodGet, "/sync/batch/missing", http.StatusNotFound},
		{http.MethodPost, "/sync/commit/missing", http.StatusNotFound},
		{http.MethodPost, "/sync/reject/missing", http.StatusNotFound},
		{http.MethodGet, "/bookmarks/missing", http.StatusNotFound},
		{http.MethodGet, "/bookmarks/missing/history", http.StatusNotFound},
		{http.MethodPost, "/bookmarks/missing/revert/h1", http.StatusNotFound},
		{http.MethodGet, "/bookmarks?limit=x", http.StatusBadRequest},
		{http.MethodGet, "/bookmarks?limit=-1", http.StatusBadRequest},
		{http.MethodGet, "/bookmarks?family=opera", http.StatusBadRequest},
		{http.MethodGet, "/nowhere", http.StatusNotFound},
		{http.MethodDelete, "/bookmarks", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			code, resp, _ := ts.do(t, tt.method, tt.path, nil)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, StatusError, resp.Status)
			require.NotNil(t, resp.Error)
			assert.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(engine.CodeInvalidInput))
	assert.Equal(t, http.StatusNotFound, statusFor(engine.CodeNotFound))
	assert.Equal(t, http.StatusConflict, statusFor(engine.CodeAlreadyProcessed))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(engine.CodeInvalidReference))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(engine.CodeSourceRead))
	assert.Equal(t, http.StatusInternalServerError, statusFor(engine.CodeStoreAccess))
	assert.Equal(t, http.StatusInternalServerError, statusFor(""))
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	ts := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	srv := New(engine.New(ts.store))

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
