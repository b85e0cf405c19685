package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/prismrag/ragjobs/pkg/archive"
	"github.com/prismrag/ragjobs/pkg/core"
	"github.com/prismrag/ragjobs/pkg/registry"
	"github.com/prismrag/ragjobs/pkg/stage"
)

func newTestHandler(t *testing.T, opts ...Option) (http.Handler, *registry.Registry) {
	t.Helper()
	cfg := stage.DefaultConfig()
	cfg.StepInterval = 0
	reg := registry.New(registry.WithStageConfig(cfg))
	t.Cleanup(reg.Close)

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append(opts, WithLogger(quiet))
	return NewHandler(reg, opts...), reg
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func waitTerminal(t *testing.T, reg *registry.Registry, id string) core.Snapshot {
	t.Helper()
	sub, err := reg.Subscribe(id)
	require.NoError(t, err)
	defer sub.Close()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case snap, open := <-sub.Snapshots():
			if !open {
				final, err := reg.Get(id)
				require.NoError(t, err)
				return final
			}
			if snap.Terminal() {
				return snap
			}
		case <-timeout:
			t.Fatal("job did not reach a terminal state")
		}
	}
}

func TestHealthz(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := get(t, h, "/api/v1/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSubmitFile_Accepted(t *testing.T) {
	h, reg := newTestHandler(t)

	rec := postJSON(t, h, "/api/v1/files", submitFileRequest{
		Filename: "report.pdf", MimeType: "application/pdf", SizeBytes: 3_000,
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.JobID)

	final := waitTerminal(t, reg, resp.JobID)
	assert.Equal(t, core.StatusCompleted, final.Status)
	assert.Equal(t, 3, final.Result.Chunks)
}

func TestSubmitFile_InvalidJSON(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files", strings.NewReader("{nope"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "BAD_REQUEST")
}

func TestSubmitFile_RejectedPayloadStillAccepted(t *testing.T) {
	// Validation failures become terminal failed jobs, not HTTP errors.
	h, reg := newTestHandler(t)

	rec := postJSON(t, h, "/api/v1/files", submitFileRequest{
		Filename: "pic.png", MimeType: "image/png", SizeBytes: 100,
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	snap, err := reg.Get(resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, snap.Status)
}

func TestSubmitPrompt_Accepted(t *testing.T) {
	h, reg := newTestHandler(t)

	rec := postJSON(t, h, "/api/v1/generate", submitPromptRequest{Prompt: "what is RAG?"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	final := waitTerminal(t, reg, resp.JobID)
	assert.Equal(t, core.StatusCompleted, final.Status)
	assert.NotEmpty(t, final.Result.Text)
}

func TestGetJob(t *testing.T) {
	h, reg := newTestHandler(t)

	id, err := reg.Submit(context.Background(), core.PromptPayload{Prompt: "hi"})
	require.NoError(t, err)
	waitTerminal(t, reg, id)

	rec := get(t, h, "/api/v1/jobs/"+id)
	require.Equal(t, http.StatusOK, rec.Code)

	var view jobView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, id, view.ID)
	assert.Equal(t, string(core.KindGeneration), view.Kind)
	assert.Equal(t, string(core.StatusCompleted), view.Status)
	assert.Equal(t, "hi", view.Prompt)
	assert.Equal(t, 1.0, view.Progress)
}

func TestGetJob_NotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := get(t, h, "/api/v1/jobs/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestListJobs_Filtered(t *testing.T) {
	h, reg := newTestHandler(t)

	fileID, err := reg.Submit(context.Background(), core.FilePayload{
		Filename: "a.txt", MimeType: "text/plain", SizeBytes: 500,
	})
	require.NoError(t, err)
	genID, err := reg.Submit(context.Background(), core.PromptPayload{Prompt: "hi"})
	require.NoError(t, err)
	waitTerminal(t, reg, fileID)
	waitTerminal(t, reg, genID)

	rec := get(t, h, "/api/v1/jobs?kind=generation")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Jobs []jobView `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, genID, resp.Jobs[0].ID)
}

func TestCancelJob(t *testing.T) {
	h, reg := newTestHandler(t)

	id, err := reg.Submit(context.Background(), core.PromptPayload{Prompt: "hi"})
	require.NoError(t, err)
	waitTerminal(t, reg, id)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/jobs/"+id+"/cancel", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/jobs/ghost/cancel", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamJob_EventsEndAtTerminal(t *testing.T) {
	h, reg := newTestHandler(t)

	id, err := reg.Submit(context.Background(), core.FilePayload{
		Filename: "a.txt", MimeType: "text/plain", SizeBytes: 2_000,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/jobs/%s/events", srv.URL, id))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var views []jobView
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var v jobView
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &v))
		views = append(views, v)
	}
	require.NoError(t, scanner.Err())
	require.NotEmpty(t, views)

	final := views[len(views)-1]
	assert.Equal(t, string(core.StatusCompleted), final.Status)
	assert.Equal(t, 2, final.Result.Chunks)
	for i := 1; i < len(views); i++ {
		if views[i].Stage == views[i-1].Stage {
			assert.GreaterOrEqual(t, views[i].Progress, views[i-1].Progress)
		}
	}
}

func TestStreamJob_NotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := get(t, h, "/api/v1/jobs/ghost/events")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListHistory_NotConfigured(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := get(t, h, "/api/v1/history")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_CONFIGURED")
}

func TestListHistory_ReturnsArchivedJobs(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	store := archive.NewStore(db)
	require.NoError(t, store.Migrate(context.Background()))

	require.NoError(t, store.Save(context.Background(), core.Snapshot{
		ID: "archived-1", Kind: core.KindIngestion,
		File:      &core.FilePayload{Filename: "old.pdf", MimeType: "application/pdf", SizeBytes: 10},
		Status:    core.StatusCompleted,
		UpdatedAt: time.Now(),
	}))

	h, _ := newTestHandler(t, WithArchive(store))

	rec := get(t, h, "/api/v1/history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "archived-1")
	assert.Contains(t, rec.Body.String(), "old.pdf")
}
