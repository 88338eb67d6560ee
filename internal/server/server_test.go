package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/ripple-memory/internal/archive"
	"github.com/rcliao/ripple-memory/internal/embedding"
	"github.com/rcliao/ripple-memory/internal/model"
	"github.com/rcliao/ripple-memory/internal/session"
	"github.com/rcliao/ripple-memory/internal/store"
	"github.com/rcliao/ripple-memory/internal/telemetry"
)

type fixture struct {
	srv      *httptest.Server
	store    *store.MemoryStore
	sessions *session.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	logger := telemetry.Discard()
	metrics := telemetry.NewMetrics()
	st, err := store.Open(context.Background(), store.Options{
		IndexPath:    filepath.Join(dir, "vector_index.rvi"),
		MetadataPath: filepath.Join(dir, "vector_metadata.db"),
	}, embedding.NewHashEmbedder(64), store.WithLogger(logger), store.WithMetrics(metrics))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg := session.NewRegistry(10)
	arch := &archive.Archiver{Store: st, Sessions: reg, Logger: logger}
	s := New(st, reg, arch,
		WithLogger(logger), WithMetrics(metrics),
		WithBackupDir(filepath.Join(dir, "backups")))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, store: st, sessions: reg}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestHealthzAndVectorCount(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, "GET", "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])

	resp, body = f.do(t, "GET", "/api/vector_count", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(0), body["count"])
}

func TestAddAndSearchMemories(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, "POST", "/api/memories", map[string]interface{}{
		"summary":      "she likes rain",
		"conversation": []map[string]string{{"role": "user", "content": "rain!"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "she likes rain", body["summary"])

	f.do(t, "POST", "/api/memories", map[string]interface{}{"summary": "she fears storms"})

	resp, body = f.do(t, "POST", "/api/memories/search", map[string]interface{}{"query": "rain", "k": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results := body["results"].([]interface{})
	require.Len(t, results, 1)
	assert.Equal(t, "she likes rain", results[0].(map[string]interface{})["summary"])

	resp, body = f.do(t, "GET", "/api/memories/1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "she fears storms", body["summary"])

	resp, _ = f.do(t, "GET", "/api/memories/7", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = f.do(t, "GET", "/api/memories?limit=1&offset=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["total"])
	assert.Len(t, body["records"], 1)

	resp, body = f.do(t, "POST", "/api/memories/recall", map[string]interface{}{"query": "rain", "k": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "she likes rain", body["memory"])
}

func TestAddMemoryValidation(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, "POST", "/api/memories", map[string]interface{}{"summary": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_request", body["error"])

	resp, _ = f.do(t, "POST", "/api/memories", map[string]interface{}{
		"summary":      "x",
		"conversation": []map[string]string{{"role": "robot", "content": "beep"}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, "POST", "/api/memories/search", map[string]interface{}{"query": "x", "k": -1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, "POST", "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)
	assert.True(t, strings.HasPrefix(id, "sess_"))

	f.do(t, "POST", "/api/sessions/"+id+"/turns", map[string]string{"role": "user", "content": "I walked in the rain"})
	resp, body = f.do(t, "POST", "/api/sessions/"+id+"/turns", map[string]string{"role": "assistant", "content": "lovely"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(9), body["remaining_count"])
	assert.Len(t, body["history"], 2)

	resp, body = f.do(t, "POST", "/api/sessions/"+id+"/archive", map[string]string{"summary": "she likes rain"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["saved"])
	assert.Equal(t, 1, f.store.Count())

	_, body = f.do(t, "GET", "/api/sessions/"+id, nil)
	assert.Empty(t, body["history"])
	assert.Equal(t, float64(10), body["remaining_count"])

	resp, _ = f.do(t, "POST", "/api/sessions/"+id+"/archive", map[string]string{"summary": "again"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClearSession(t *testing.T) {
	f := newFixture(t)
	f.sessions.AppendTurn("abc", model.Turn{Role: model.RoleUser, Content: "hi"})

	resp, body := f.do(t, "DELETE", "/api/sessions/abc", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["history"])
	assert.Equal(t, 1, f.sessions.Len())
}

func TestBackupsAndMetrics(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, "GET", "/api/backups", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	info := body["info"].(map[string]interface{})
	assert.Equal(t, float64(0), info["backup_count"])
	assert.Equal(t, false, body["running"])

	resp, _ = f.do(t, "GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
