package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nhuphucnguyen/TubeScribe/server/config"
	"github.com/nhuphucnguyen/TubeScribe/server/internal/engine"
	"github.com/nhuphucnguyen/TubeScribe/server/internal/queue"
	"github.com/nhuphucnguyen/TubeScribe/server/internal/registry"
)

// stubEngine serves canned metadata and waits on release before
// finishing a download, so tests can observe in-flight state.
type stubEngine struct {
	meta    *engine.Metadata
	release chan struct{}
}

func (s *stubEngine) Metadata(ctx context.Context, url string) (*engine.Metadata, error) {
	return s.meta, nil
}

func (s *stubEngine) Download(ctx context.Context, req engine.DownloadRequest, hook engine.ProgressFunc) (string, error) {
	if s.release != nil {
		<-s.release
	}

	hook(engine.Progress{Phase: engine.PhaseFinished})

	path := filepath.Join(req.OutputDir, "video.mp4")
	if err := os.WriteFile(path, []byte("payload"), 0644); err != nil {
		return "", err
	}
	return path, nil
}

func setupTest(t *testing.T, eng engine.Engine) (*registry.Store, http.Handler) {
	t.Helper()

	config.Instance().Paths.DownloadPath = t.TempDir()
	config.Instance().Server.QueueSize = 2

	mdb := registry.NewStore()

	mq, err := queue.NewMessageQueue()
	if err != nil {
		t.Fatalf("NewMessageQueue: %v", err)
	}
	mq.SetupConsumers()
	t.Cleanup(mq.Stop)

	h := &Handler{service: NewService(mdb, mq, eng, nil)}

	r := chi.NewRouter()
	r.Post("/api/info", h.Info)
	r.Post("/api/download", h.Download)
	r.Get("/api/status/{download_id}", h.Status)
	r.Get("/api/download/{download_id}", h.File)

	return mdb, r
}

func postForm(t *testing.T, h http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestMalformedURLsRejectedWithoutCreatingTasks(t *testing.T) {
	mdb, h := setupTest(t, &stubEngine{meta: &engine.Metadata{Title: "t"}})

	badURLs := []string{
		"",
		"https://example.com/watch?v=x",
		"https://vimeo.com/1234",
		"youtube.com",
		"not a url",
	}

	for _, u := range badURLs {
		w := httptest.NewRecorder()
		body := strings.NewReader(`{"url":"` + u + `"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/info", body)
		h.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("info(%q) = %d, want 400", u, w.Code)
		}

		w = postForm(t, h, "/api/download", url.Values{"url": {u}, "format_id": {"best"}})
		if w.Code != http.StatusBadRequest {
			t.Errorf("download(%q) = %d, want 400", u, w.Code)
		}
	}

	if keys := mdb.Keys(); len(keys) != 0 {
		t.Errorf("tasks created for invalid input: %v", keys)
	}
}

func TestDownloadReturnsImmediately(t *testing.T) {
	eng := &stubEngine{meta: &engine.Metadata{}, release: make(chan struct{})}
	mdb, h := setupTest(t, eng)

	w := postForm(t, h, "/api/download", url.Values{
		"url":       {"https://www.youtube.com/watch?v=abc"},
		"format_id": {"best"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("download = %d: %s", w.Code, w.Body.String())
	}

	var res downloadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.DownloadId == "" {
		t.Fatal("empty download id")
	}

	// the fetch is still blocked on release, yet the task exists
	task, err := mdb.Get(res.DownloadId)
	if err != nil {
		t.Fatalf("task not registered: %v", err)
	}
	if s := task.Snapshot().Status; s != registry.StatusDownloading {
		t.Errorf("status = %q, want downloading", s)
	}

	close(eng.release)
	waitForStatus(t, mdb, res.DownloadId, registry.StatusCompleted)
}

func TestStatusUnknownId(t *testing.T) {
	_, h := setupTest(t, &stubEngine{meta: &engine.Metadata{}})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestFileRequestBeforeCompletion(t *testing.T) {
	mdb, h := setupTest(t, &stubEngine{meta: &engine.Metadata{}})

	mdb.Create("pending-task")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/download/pending-task", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("file = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "downloading") {
		t.Errorf("error does not name the current status: %q", w.Body.String())
	}
}

func TestFileMissingArtifact(t *testing.T) {
	mdb, h := setupTest(t, &stubEngine{meta: &engine.Metadata{}})

	noFile, _ := mdb.Create("no-file")
	noFile.Complete("")

	gone, _ := mdb.Create("gone")
	gone.Complete(filepath.Join(t.TempDir(), "deleted.mp4"))

	for _, id := range []string{"no-file", "gone"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/download/"+id, nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("file(%s) = %d, want 404", id, w.Code)
		}
	}
}

func TestFileServedAsAttachment(t *testing.T) {
	mdb, h := setupTest(t, &stubEngine{meta: &engine.Metadata{}})

	path := filepath.Join(t.TempDir(), "My Talk.mp4")
	if err := os.WriteFile(path, []byte("payload"), 0644); err != nil {
		t.Fatal(err)
	}

	task, _ := mdb.Create("done")
	task.Complete(path)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/download/done", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("file = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Errorf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename="My Talk.mp4"`) {
		t.Errorf("content disposition = %q", cd)
	}
	if w.Body.String() != "payload" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestInfoResponseShape(t *testing.T) {
	eng := &stubEngine{meta: &engine.Metadata{
		Title: "A Talk",
		Formats: []engine.Format{
			{FormatID: "22", Vcodec: "avc1", Acodec: "mp4a", Resolution: "1280x720", Height: 720, Ext: "mp4"},
		},
	}}
	_, h := setupTest(t, eng)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/info", strings.NewReader(`{"url":"https://youtu.be/abc"}`))
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("info = %d: %s", w.Code, w.Body.String())
	}

	var res InfoResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if res.DownloadId == "" {
		t.Error("empty download id")
	}
	if res.Title != "A Talk" {
		t.Errorf("title = %q", res.Title)
	}
	// 7 smart options + the single combined encoding
	if len(res.Formats) != 8 {
		t.Errorf("formats = %d entries, want 8", len(res.Formats))
	}
}

func waitForStatus(t *testing.T, mdb *registry.Store, id string, want registry.Status) {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		task, err := mdb.Get(id)
		if err != nil {
			t.Fatalf("task %s vanished: %v", id, err)
		}
		if task.Snapshot().Status == want {
			return
		}

		select {
		case <-deadline:
			t.Fatalf("task %s never reached %q (now %q)", id, want, task.Snapshot().Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
