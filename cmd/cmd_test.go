package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/videochat/backendtest"
	"github.com/nijaru/videochat/client"
	"github.com/nijaru/videochat/history"
	"github.com/nijaru/videochat/models"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("VIDEOCHAT_HISTORY_PATH", filepath.Join(dir, "history.db"))
	t.Setenv("VIDEOCHAT_EXPORT_DIR", filepath.Join(dir, "frames"))
	t.Setenv("VIDEOCHAT_S3_BUCKET", "")
	t.Setenv("VIDEOCHAT_METRICS_ADDR", "")
	return dir
}

func run(t *testing.T, srv *backendtest.Server, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd(&out, &errOut)
	root.SetArgs(append([]string{"--base-url", srv.URL, "--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func runJSON(t *testing.T, srv *backendtest.Server, v any, args ...string) {
	t.Helper()
	out, err := run(t, srv, append([]string{"--json"}, args...)...)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}

func newBackend(t *testing.T) *backendtest.Server {
	t.Helper()
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	return srv
}

func TestVersionNeedsNoBackend(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCmd(&out, io.Discard)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "videochat dev")
}

func TestHealthAndInfo(t *testing.T) {
	setupEnv(t)
	srv := newBackend(t)

	out, err := run(t, srv, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "Status: healthy")
	assert.Contains(t, out, "database")

	var info models.ServiceInfo
	runJSON(t, srv, &info, "info")
	assert.Equal(t, "1.0.0", info.Version)
}

func TestYouTubeAndVideoCommands(t *testing.T) {
	setupEnv(t)
	srv := newBackend(t)

	var yt models.YouTubeResponse
	runJSON(t, srv, &yt, "youtube", "https://www.youtube.com/watch?v=abc123")
	assert.Equal(t, 2, yt.SectionsCount)

	out, err := run(t, srv, "video", "sections", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "0:00-1:00")

	_, err = run(t, srv, "youtube", "https://example.com/watch?v=abc")
	require.Error(t, err)
	assert.Len(t, srv.Requests(), 2, "invalid URL must not reach the backend")

	_, err = run(t, srv, "video", "get", "99")
	assert.EqualError(t, err, "Video not found")

	_, err = run(t, srv, "video", "get", "abc")
	assert.EqualError(t, err, `invalid video id "abc"`)
}

func TestUploadCommand(t *testing.T) {
	dir := setupEnv(t)
	srv := newBackend(t)

	path := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video bytes"), 0o644))

	var resp models.UploadResponse
	runJSON(t, srv, &resp, "upload", path)
	assert.Equal(t, 1, resp.VideoID)

	_, err := run(t, srv, "upload", filepath.Join(dir, "missing.mp4"))
	require.Error(t, err)
}

func TestRecordAndLog(t *testing.T) {
	setupEnv(t)
	srv := newBackend(t)

	_, err := run(t, srv, "youtube", "https://youtu.be/abc123")
	require.NoError(t, err)

	// Nothing recorded yet and no journal file created
	var chats []history.ChatEntry
	runJSON(t, srv, &chats, "log", "chats", "1")
	assert.Empty(t, chats)

	_, err = run(t, srv, "chat", "send", "1", "what", "happens?", "--record")
	require.NoError(t, err)
	_, err = run(t, srv, "chat", "send", "1", "not recorded")
	require.NoError(t, err)

	runJSON(t, srv, &chats, "log", "chats", "1")
	require.Len(t, chats, 1)
	assert.Equal(t, "what happens?", chats[0].Message)

	_, err = run(t, srv, "frames", "analyze", "1")
	require.NoError(t, err)

	var res models.VisualSearchResponse
	runJSON(t, srv, &res, "search", "visual", "1", "red", "car", "--standard", "--max", "2", "--record")
	assert.Equal(t, 2, res.TotalResults)

	var searches []history.SearchEntry
	runJSON(t, srv, &searches, "log", "searches", "1")
	require.Len(t, searches, 1)
	assert.Equal(t, "red car", searches[0].Query)
	assert.Equal(t, "standard", searches[0].Strategy)
	assert.Equal(t, 2, searches[0].TotalResults)

	_, err = run(t, srv, "chat", "clear", "1")
	require.NoError(t, err)
	runJSON(t, srv, &chats, "log", "chats", "1")
	assert.Empty(t, chats)

	_, err = run(t, srv, "video", "delete", "1")
	require.NoError(t, err)
	runJSON(t, srv, &searches, "log", "searches", "1")
	assert.Empty(t, searches)
}

func TestSearchRequestShape(t *testing.T) {
	setupEnv(t)
	srv := newBackend(t)
	_, err := run(t, srv, "youtube", "https://youtu.be/abc123")
	require.NoError(t, err)

	_, err = run(t, srv, "search", "visual", "1", "anything")
	require.NoError(t, err)
	last, ok := srv.LastRequest()
	require.True(t, ok)
	assert.Equal(t, "/api/v1/search/visual", last.Path)
	assert.Equal(t, "use_native=true", last.RawQuery)

	var sugg models.SearchSuggestionsResponse
	runJSON(t, srv, &sugg, "search", "suggestions", "1")
	assert.Equal(t, "frame_analysis", sugg.GenerationMethod)
}

func TestFramesGet(t *testing.T) {
	dir := setupEnv(t)
	srv := newBackend(t)
	_, err := run(t, srv, "youtube", "https://youtu.be/abc123")
	require.NoError(t, err)

	target := filepath.Join(dir, "frame.png")
	_, err = run(t, srv, "frames", "get", "1", "30", "-o", target)
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, backendtest.FrameImage(30), data)
}

func TestFramesExport(t *testing.T) {
	dir := setupEnv(t)
	srv := newBackend(t)
	_, err := run(t, srv, "youtube", "https://youtu.be/abc123")
	require.NoError(t, err)

	var all exportResult
	runJSON(t, srv, &all, "frames", "export", "1", "--dedup", "0")
	assert.Equal(t, 7, all.Fetched)
	assert.Equal(t, 7, all.Kept)
	require.Len(t, all.Files, 7)
	assert.Equal(t, filepath.Join(dir, "frames", "video_1_0s.png"), all.Files[0])
	assert.Empty(t, all.Uploaded)

	// Every pair of distinct hashes is closer than the maximum distance
	var collapsed exportResult
	runJSON(t, srv, &collapsed, "frames", "export", "1", "--dedup", "64", "--dir", filepath.Join(dir, "one"))
	assert.Equal(t, 7, collapsed.Fetched)
	assert.Equal(t, 1, collapsed.Kept)

	entries, err := os.ReadDir(filepath.Join(dir, "one"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMetricsMux(t *testing.T) {
	registry := prometheus.NewRegistry()
	a := &app{registry: registry, metrics: client.NewMetrics(registry)}

	backend := newBackend(t)
	c := client.New(backend.URL, client.WithMetrics(a.metrics))
	_, err := c.HealthCheck(context.Background())
	require.NoError(t, err)

	srv := httptest.NewServer(metricsMux(a))
	defer srv.Close()

	resp, err := (&http.Client{Timeout: 5 * time.Second}).Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `videochat_client_requests_total{code="200",op="Client.HealthCheck"} 1`)
}

func TestFlagBaseURLOverridesInvalidEnv(t *testing.T) {
	setupEnv(t)
	srv := newBackend(t)
	t.Setenv("VIDEOCHAT_BASE_URL", "ftp://not-http")

	out, err := run(t, srv, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "Status: healthy")

	var errOut bytes.Buffer
	root := NewRootCmd(io.Discard, &errOut)
	root.SetArgs([]string{"--log-level", "error", "health"})
	require.Error(t, root.Execute())
}

// memoryS3 is a path-style object store keyed by /<bucket>/<key>.
type memoryS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func (m *memoryS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		m.objects[r.URL.Path] = data
		m.puts++
		w.Header().Set("ETag", `"etag"`)
	case http.MethodGet:
		data, ok := m.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestFramesExportSkipsStoredFrames(t *testing.T) {
	dir := setupEnv(t)
	store := &memoryS3{objects: map[string][]byte{}}
	s3srv := httptest.NewServer(store)
	t.Cleanup(s3srv.Close)

	t.Setenv("VIDEOCHAT_S3_ENDPOINT", s3srv.URL)
	t.Setenv("VIDEOCHAT_S3_REGION", "nyc3")
	t.Setenv("VIDEOCHAT_S3_ACCESS_KEY", "key")
	t.Setenv("VIDEOCHAT_S3_SECRET_KEY", "secret")

	srv := newBackend(t)
	_, err := run(t, srv, "youtube", "https://youtu.be/abc123")
	require.NoError(t, err)

	var first exportResult
	runJSON(t, srv, &first, "frames", "export", "1", "--dedup", "0", "--bucket", "exports", "--dir", filepath.Join(dir, "a"))
	require.Len(t, first.Uploaded, 7)
	assert.Empty(t, first.Skipped)
	assert.Equal(t, "frames/1/video_1_0s.png", first.Uploaded[0])

	var second exportResult
	runJSON(t, srv, &second, "frames", "export", "1", "--dedup", "0", "--bucket", "exports", "--dir", filepath.Join(dir, "b"))
	assert.Empty(t, second.Uploaded)
	assert.Equal(t, first.Uploaded, second.Skipped)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 7, store.puts)
	assert.Equal(t, backendtest.FrameImage(0), store.objects["/exports/frames/1/video_1_0s.png"])
}
