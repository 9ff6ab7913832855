package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/phrazzld/docflow/internal/api"
)

// fakeServer mimics the docflow API. Status polls report PROCESSING once
// before the final state.
func fakeServer(t *testing.T, finalStatus string) *httptest.Server {
	t.Helper()

	var polls atomic.Int32
	mux := http.NewServeMux()

	submit := func(w http.ResponseWriter, r *http.Request) {
		var req api.ItemIDsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.ItemIDs) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Validation error","trace_id":"abc"}`))
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"taskId":"task-1"}`))
	}
	mux.HandleFunc("POST /api/files/process/docx", submit)
	mux.HandleFunc("POST /api/files/embed", submit)

	mux.HandleFunc("GET /api/files/process/status/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "task-1" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Task not found"}`))
			return
		}
		st := api.TaskStatusResponse{TaskID: "task-1", Operation: "normalize", Status: "PROCESSING", Results: map[string]string{}}
		if polls.Add(1) > 1 {
			st.Status = finalStatus
			st.Results = map[string]string{"1": "processed_new_id=3", "2": "not_found"}
			if finalStatus == "FAILED" {
				st.Message = "item 1: boom"
			}
		}
		_ = json.NewEncoder(w).Encode(st)
	})

	mux.HandleFunc("POST /api/files/search", func(w http.ResponseWriter, r *http.Request) {
		var req api.SearchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]any{"query": req.Query, "n": req.NResults})
	})

	mux.HandleFunc("POST /api/files/download/batch", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="docflow-zip-20260101-0001.zip"; filename*=UTF-8''docflow-zip-20260101-0001.zip`)
		zw := zip.NewWriter(w)
		f, _ := zw.Create("a.txt")
		_, _ = f.Write([]byte("hello"))
		_ = zw.Close()
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runCLI(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()

	cfg := filepath.Join(t.TempDir(), "docctl.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("pollInterval: 5ms\n"), 0o600))

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(append([]string{"--config", cfg, "--base-url", srv.URL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestProcessCommand(t *testing.T) {
	srv := fakeServer(t, "COMPLETED")

	out, err := runCLI(t, srv, "process", "1", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "task-1 accepted")

	out, err = runCLI(t, srv, "process", "1", "2", "--wait", "-o", "json")
	require.NoError(t, err)

	var st api.TaskStatusResponse
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, "COMPLETED", st.Status)
	assert.Equal(t, "processed_new_id=3", st.Results["1"])
}

func TestProcessCommandRejectsBadIDs(t *testing.T) {
	srv := fakeServer(t, "COMPLETED")

	_, err := runCLI(t, srv, "process", "1", "zero")
	assert.ErrorContains(t, err, `invalid document id "zero"`)

	_, err = runCLI(t, srv, "embed", "-3")
	assert.Error(t, err)
}

func TestWaitCommandFailedTask(t *testing.T) {
	srv := fakeServer(t, "FAILED")

	out, err := runCLI(t, srv, "wait", "task-1")
	assert.ErrorIs(t, err, errTaskFailed)
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "item 1: boom")
}

func TestStatusCommand(t *testing.T) {
	srv := fakeServer(t, "COMPLETED")

	out, err := runCLI(t, srv, "status", "task-1", "-o", "yaml")
	require.NoError(t, err)

	var st map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &st))
	assert.Equal(t, "PROCESSING", st["status"])

	_, err = runCLI(t, srv, "status", "missing")
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Task not found", apiErr.Message)
}

func TestSearchCommand(t *testing.T) {
	srv := fakeServer(t, "COMPLETED")

	out, err := runCLI(t, srv, "search", "contracts", "-n", "3", "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":"contracts","n":3}`, out)
}

func TestDownloadCommand(t *testing.T) {
	srv := fakeServer(t, "COMPLETED")
	target := filepath.Join(t.TempDir(), "out.zip")

	out, err := runCLI(t, srv, "download", "1", "2", "--out", target)
	require.NoError(t, err)
	assert.Contains(t, out, target)

	zr, err := zip.OpenReader(target)
	require.NoError(t, err)
	defer func() { _ = zr.Close() }()
	require.Len(t, zr.File, 1)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	content, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "hello", string(content))
}

func TestUnknownOutputFormat(t *testing.T) {
	srv := fakeServer(t, "COMPLETED")

	_, err := runCLI(t, srv, "status", "task-1", "-o", "xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "docctl.yaml")

	cfg, err := loadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, defaultSettings(), cfg)

	cfg.BaseURL = "http://docflow.internal:9000"
	cfg.PollInterval = 250 * time.Millisecond
	require.NoError(t, saveSettings(cfg, path))

	loaded, err := loadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestAttachmentName(t *testing.T) {
	assert.Equal(t, "résumé.zip", attachmentName(`attachment; filename="r_sum_.zip"; filename*=UTF-8''r%C3%A9sum%C3%A9.zip`))
	assert.Equal(t, "plain.zip", attachmentName(`attachment; filename="plain.zip"`))
	assert.Empty(t, attachmentName(""))
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"2", "10", "x"}, sortedKeys(map[string]string{"10": "", "x": "", "2": ""}))
}
