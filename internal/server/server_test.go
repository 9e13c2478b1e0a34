package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/tender-ingest/internal/db"
	"github.com/jonathan/tender-ingest/internal/types"
)

// mockStore implements StatusStore for testing
type mockStore struct {
	counts  map[string]map[types.TaskState]int
	runs    []db.Run
	err     error
	pingErr error

	lastStage string
	lastLimit int
}

func (m *mockStore) TaskCounts(_ context.Context, kind string) (map[types.TaskState]int, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.counts[kind], nil
}

func (m *mockStore) ListRuns(_ context.Context, stage string, limit int) ([]db.Run, error) {
	m.lastStage, m.lastLimit = stage, limit
	if m.err != nil {
		return nil, m.err
	}
	return m.runs, nil
}

func (m *mockStore) GetRun(_ context.Context, runID uuid.UUID) (*db.Run, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.runs {
		if m.runs[i].ID == runID {
			return &m.runs[i], nil
		}
	}
	return nil, nil
}

func (m *mockStore) Ping(_ context.Context) error {
	return m.pingErr
}

func serve(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleStatus(t *testing.T) {
	store := &mockStore{counts: map[string]map[types.TaskState]int{
		types.TaskKindTenderDoc: {types.TaskStatePending: 3, types.TaskStateDownloaded: 5, types.TaskStateFailed: 1},
		types.TaskKindAgencyDoc: {types.TaskStatePending: 0, types.TaskStateDownloaded: 2, types.TaskStateFailed: 0},
	}}
	s := New(Config{}, store, nil)

	rec := serve(t, s, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Tasks, 3)
	assert.Equal(t, 3, resp.Tasks[types.TaskKindTenderDoc][types.TaskStatePending])
	assert.Equal(t, 2, resp.Tasks[types.TaskKindAgencyDoc][types.TaskStateDownloaded])
}

func TestHandleStatus_SingleKind(t *testing.T) {
	store := &mockStore{counts: map[string]map[types.TaskState]int{
		types.TaskKindContract: {types.TaskStatePending: 7},
	}}
	rec := serve(t, New(Config{}, store, nil), "/status?kind=contract_doc")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, map[string]map[types.TaskState]int{
		types.TaskKindContract: {types.TaskStatePending: 7},
	}, resp.Tasks)
}

func TestHandleStatus_UnknownKind(t *testing.T) {
	rec := serve(t, New(Config{}, &mockStore{}, nil), "/status?kind=images")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown task kind")
}

func TestHandleStatus_StoreUnavailable(t *testing.T) {
	store := &mockStore{err: fmt.Errorf("%w: connection refused", db.ErrStoreUnavailable)}
	rec := serve(t, New(Config{}, store, nil), "/status")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleReady(t *testing.T) {
	rec := serve(t, New(Config{}, &mockStore{}, nil), "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())

	down := &mockStore{pingErr: fmt.Errorf("%w: dial tcp: connection refused", db.ErrStoreUnavailable)}
	rec = serve(t, New(Config{}, down, nil), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestHandleListRuns(t *testing.T) {
	now := time.Now()
	store := &mockStore{runs: []db.Run{
		{ID: uuid.New(), Stage: db.StageDownload, CPVCode: "33600000", Status: db.RunStatusCompleted, CreatedAt: now},
	}}
	s := New(Config{}, store, nil)

	rec := serve(t, s, "/runs?stage=download&limit=10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, db.StageDownload, store.lastStage)
	assert.Equal(t, 10, store.lastLimit)

	var resp struct {
		Runs  []db.Run `json:"runs"`
		Count int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "33600000", resp.Runs[0].CPVCode)
}

func TestHandleListRuns_Empty(t *testing.T) {
	rec := serve(t, New(Config{}, &mockStore{}, nil), "/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"runs":[],"count":0}`, rec.Body.String())
}

func TestHandleListRuns_InvalidParams(t *testing.T) {
	s := New(Config{}, &mockStore{}, nil)
	tests := []string{"/runs?stage=render", "/runs?limit=0", "/runs?limit=abc", "/runs?limit=501"}
	for _, path := range tests {
		t.Run(path, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, serve(t, s, path).Code)
		})
	}
}

func TestHandleGetRun(t *testing.T) {
	id := uuid.New()
	store := &mockStore{runs: []db.Run{{ID: id, Stage: db.StageParse, Status: db.RunStatusFailed,
		Stats: db.RunStats{Processed: 4, Failed: 1}}}}
	s := New(Config{}, store, nil)

	rec := serve(t, s, "/runs/"+id.String())
	require.Equal(t, http.StatusOK, rec.Code)
	var run db.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, db.RunStatusFailed, run.Status)
	assert.Equal(t, 4, run.Stats.Processed)

	assert.Equal(t, http.StatusNotFound, serve(t, s, "/runs/"+uuid.NewString()).Code)
	assert.Equal(t, http.StatusBadRequest, serve(t, s, "/runs/not-a-uuid").Code)
}

func TestHandler_MetricsAndHealth(t *testing.T) {
	s := New(Config{}, nil, nil)

	rec := serve(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = serve(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	// Without a store the status routes are not registered.
	assert.Equal(t, http.StatusNotFound, serve(t, s, "/status").Code)
	assert.Equal(t, http.StatusNotFound, serve(t, s, "/readyz").Code)
}

func TestStart_ShutsDownOnCancel(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"}, &mockStore{}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", &ErrRunNotFound{RunID: uuid.New()}, http.StatusNotFound},
		{"validation", &ErrValidation{Field: "limit", Message: "bad"}, http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("request: %w", &ErrValidation{Field: "kind"}), http.StatusBadRequest},
		{"store unavailable", fmt.Errorf("query: %w", db.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "run not found: "+id.String(), (&ErrRunNotFound{RunID: id}).Error())
	assert.Equal(t, "validation error: kind - unknown", (&ErrValidation{Field: "kind", Message: "unknown"}).Error())
}
