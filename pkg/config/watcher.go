package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// PipelineWatcher watches a pipeline directory and triggers a reload
// callback when definition files change. Rapid bursts of events (editors
// writing temp files, rsync) collapse into one reload via debouncing.
type PipelineWatcher struct {
	dir        string
	watcher    *fsnotify.Watcher
	reloadFunc func(dir string) error
	logger     *slog.Logger
	debounce   time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewPipelineWatcher creates a watcher over the pipeline directory.
func NewPipelineWatcher(dir string, reloadFunc func(dir string) error, logger *slog.Logger) (*PipelineWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineWatcher{
		dir:        dir,
		watcher:    w,
		reloadFunc: reloadFunc,
		logger:     logger,
		debounce:   500 * time.Millisecond,
		stopCh:     make(chan struct{}),
	}, nil
}

// Start begins watching. Idempotent.
func (w *PipelineWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}

	w.logger.Info("pipeline watcher started", "dir", w.dir)
	go w.watchLoop(ctx)
	return nil
}

// Stop stops the watcher and closes the underlying notifier.
func (w *PipelineWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	return w.watcher.Close()
}

func (w *PipelineWatcher) watchLoop(ctx context.Context) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isPipelineFileEvent(event) {
				continue
			}
			w.logger.Debug("pipeline file event", "op", event.Op.String(), "file", event.Name)
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("pipeline watcher error", "error", err)

		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *PipelineWatcher) reload() {
	if err := w.reloadFunc(w.dir); err != nil {
		// A broken definition keeps the previous set active.
		w.logger.Error("pipeline reload failed", "dir", w.dir, "error", err)
		return
	}
	w.logger.Info("pipelines reloaded", "dir", w.dir)
}

func isPipelineFileEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	return ext == ".yaml" || ext == ".yml"
}
