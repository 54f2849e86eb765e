package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a FileSource when its file changes on disk. Editors often
// replace files by rename, so the parent directory is watched and events are
// filtered by name.
type Watcher struct {
	source   *FileSource
	onReload func()
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewWatcher creates a watcher for source. onReload runs after every
// successful reload and may be nil.
func NewWatcher(source *FileSource, onReload func()) *Watcher {
	return &Watcher{
		source:   source,
		onReload: onReload,
		debounce: 250 * time.Millisecond,
	}
}

// Start begins watching. It is non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(w.source.Path())
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	w.watcher = fw
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true
	go w.run(ctx)

	w.source.logger.Info("watching rules file", "path", w.source.Path())
	return nil
}

// Stop ends the watch loop and waits for it to exit. Cancelling the context
// passed to Start has the same effect; Stop is then a no-op.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	done := w.doneCh
	fw := w.watcher
	w.mu.Unlock()

	<-done
	if err := fw.Close(); err != nil {
		w.source.logger.Error("closing rules watcher", "error", err)
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	target := filepath.Clean(w.source.Path())
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.closeOnCancel()
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Collapse bursts of writes from a single save.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.source.logger.Error("rules watcher error", "error", err)

		case <-fire:
			fire = nil
			if err := w.source.Reload(); err != nil {
				w.source.logger.Error("rules reload failed, keeping previous rules", "error", err)
				continue
			}
			if w.onReload != nil {
				w.onReload()
			}
		}
	}
}

// closeOnCancel releases the fsnotify watcher unless Stop already owns that.
func (w *Watcher) closeOnCancel() {
	w.mu.Lock()
	owned := w.running
	w.running = false
	fw := w.watcher
	w.mu.Unlock()
	if !owned {
		return
	}
	if err := fw.Close(); err != nil {
		w.source.logger.Error("closing rules watcher", "error", err)
	}
}
