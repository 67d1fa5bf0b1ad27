package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/videochat/models"
)

type fakeUploader struct {
	mu    sync.Mutex
	paths []string
	fail  map[string]bool
}

func (f *fakeUploader) UploadVideoFile(ctx context.Context, path string) (*models.UploadResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	if f.fail[filepath.Base(path)] {
		return nil, errors.New("Upload failed")
	}
	return &models.UploadResponse{VideoID: len(f.paths), Status: "processing"}, nil
}

func (f *fakeUploader) uploaded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

func startWatcher(t *testing.T, dir string, up Uploader) <-chan Result {
	t.Helper()
	results := make(chan Result, 10)
	log, _ := logtest.NewNullLogger()

	w := New(dir, up, Options{
		SettleDelay: 100 * time.Millisecond,
		Logger:      log,
		OnResult:    func(r Result) { results <- r },
	})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-errc)
	})

	select {
	case <-w.Ready():
	case err := <-errc:
		t.Fatalf("watcher exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher not ready")
	}
	return results
}

func waitResult(t *testing.T, results <-chan Result) Result {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("no upload result")
		return Result{}
	}
}

func TestWatcherUploadsSettledVideosOnce(t *testing.T) {
	dir := t.TempDir()
	up := &fakeUploader{}
	results := startWatcher(t, dir, up)

	video := filepath.Join(dir, "talk.mp4")
	require.NoError(t, os.WriteFile(video, []byte("part one"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.mp4"), []byte("ignored"), 0o644))

	f, err := os.OpenFile(video, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(" and part two")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	r := waitResult(t, results)
	require.NoError(t, r.Err)
	assert.Equal(t, video, r.Path)
	assert.Equal(t, "processing", r.Response.Status)

	// A later write to an uploaded file is ignored
	require.NoError(t, os.WriteFile(video, []byte("rewritten"), 0o644))
	select {
	case r := <-results:
		t.Fatalf("unexpected second upload of %s", r.Path)
	case <-time.After(300 * time.Millisecond):
	}

	assert.Equal(t, []string{video}, up.uploaded())
}

func TestWatcherContinuesAfterFailure(t *testing.T) {
	dir := t.TempDir()
	up := &fakeUploader{fail: map[string]bool{"bad.mov": true}}
	results := startWatcher(t, dir, up)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.mov"), []byte("x"), 0o644))
	r := waitResult(t, results)
	assert.EqualError(t, r.Err, "Upload failed")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.MKV"), []byte("y"), 0o644))
	r = waitResult(t, results)
	require.NoError(t, r.Err)
	assert.Equal(t, filepath.Join(dir, "good.MKV"), r.Path)
}

func TestRunMissingDir(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "absent"), &fakeUploader{}, Options{})
	assert.Error(t, w.Run(context.Background()))
}
