package prompt

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"greenprint/internal/logging"
)

// Watcher reloads the Builder when .tmpl files in an override directory
// change, so prompt wording can be iterated against a live server.
type Watcher struct {
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	builder *Builder
	dir     string

	dirty       bool
	debounceDur time.Duration

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewWatcher creates a watcher over dir. The directory's templates are
// loaded immediately; Start begins watching for changes.
func NewWatcher(builder *Builder, dir string) (*Watcher, error) {
	if err := builder.LoadDir(dir); err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:     fw,
		builder:     builder,
		dir:         dir,
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs on its own
// goroutine until Stop or context cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	// Only mark running once the directory is watched; otherwise Stop
	// would wait on a loop that never started.
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	w.running = true
	logging.Pipeline("Watching prompt templates: %s", w.dir)

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryPipeline).Error("Failed to close template watcher: %v", err)
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	// Editors fire bursts of events per save; batch them on a short tick.
	debounce := time.NewTicker(w.debounceDur)
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".tmpl") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			w.dirty = true
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryPipeline).Error("Template watcher error: %v", err)

		case <-debounce.C:
			w.reloadIfDirty()
		}
	}
}

func (w *Watcher) reloadIfDirty() {
	w.mu.Lock()
	dirty := w.dirty
	w.dirty = false
	w.mu.Unlock()

	if !dirty {
		return
	}
	if err := w.builder.LoadDir(w.dir); err != nil {
		// Keep serving the last good template set.
		logging.Get(logging.CategoryPipeline).Warn("Template reload failed, keeping previous set: %v", err)
	}
}
