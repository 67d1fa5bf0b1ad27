// Package watch uploads video files as they appear in a directory.
package watch

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/videochat/models"
	"github.com/nijaru/videochat/validation"
)

const defaultSettleDelay = 2 * time.Second

// Uploader is the part of the API client the watcher needs.
type Uploader interface {
	UploadVideoFile(ctx context.Context, path string) (*models.UploadResponse, error)
}

// Result reports the outcome of one upload.
type Result struct {
	Path     string
	Response *models.UploadResponse
	Err      error
}

type Options struct {
	// Extensions restricts uploads to these lower-case extensions. Empty means
	// validation.VideoExtensions.
	Extensions []string
	// SettleDelay is how long a file must stay unchanged before it is uploaded.
	SettleDelay time.Duration
	Logger      logrus.FieldLogger
	OnResult    func(Result)
}

// Watcher uploads each new video file in a directory exactly once, after
// writes to it have settled.
type Watcher struct {
	dir      string
	uploader Uploader
	opts     Options

	mu     sync.Mutex
	timers map[string]*time.Timer
	done   map[string]bool

	ready chan struct{}
}

func New(dir string, uploader Uploader, opts Options) *Watcher {
	if len(opts.Extensions) == 0 {
		opts.Extensions = validation.VideoExtensions
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = defaultSettleDelay
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	return &Watcher{
		dir:      dir,
		uploader: uploader,
		opts:     opts,
		timers:   make(map[string]*time.Timer),
		done:     make(map[string]bool),
		ready:    make(chan struct{}),
	}
}

// Ready is closed once the directory is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is cancelled. Upload failures are reported through
// OnResult and the log; they never stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return errors.Wrapf(err, "watch %s", w.dir)
	}

	log := w.opts.Logger.WithField("dir", w.dir)
	log.WithField("settle_delay", w.opts.SettleDelay).Info("Watching for new videos")
	close(w.ready)

	settled := make(chan string)
	defer w.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event, settled)
		case path := <-settled:
			w.upload(ctx, log, path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("Watch error")
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event, settled chan<- string) {
	path := event.Name
	if !w.wanted(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done[path] {
		return
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		if t, ok := w.timers[path]; ok {
			t.Stop()
			delete(w.timers, path)
		}
		return
	}

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	// Restart the settle timer on every write
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.opts.SettleDelay, func() {
		select {
		case settled <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) upload(ctx context.Context, log logrus.FieldLogger, path string) {
	w.mu.Lock()
	delete(w.timers, path)
	if w.done[path] {
		w.mu.Unlock()
		return
	}
	w.done[path] = true
	w.mu.Unlock()

	fileLog := log.WithField("file", filepath.Base(path))
	fileLog.Info("Uploading video")

	resp, err := w.uploader.UploadVideoFile(ctx, path)
	if err != nil {
		fileLog.WithError(err).Error("Upload failed")
	} else {
		fileLog.WithFields(logrus.Fields{
			"video_id": resp.VideoID,
			"status":   resp.Status,
		}).Info("Video uploaded")
	}

	if w.opts.OnResult != nil {
		w.opts.OnResult(Result{Path: path, Response: resp, Err: err})
	}
}

func (w *Watcher) wanted(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, allowed := range w.opts.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}
