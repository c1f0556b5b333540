// Package watch notices when an installer replaces the resolved binary.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"pglauncher/internal/debug"
)

// DefaultDebounce collapses the burst of events an installer produces
// while writing a file.
const DefaultDebounce = 500 * time.Millisecond

// BinaryWatcher calls back after the watched file settles following a change.
type BinaryWatcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	callback func()
}

// NewBinaryWatcher watches path. The parent directory is watched so that
// replace-by-rename, which swaps the inode, is seen as well.
func NewBinaryWatcher(path string, debounce time.Duration, callback func()) (*BinaryWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &BinaryWatcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		watcher:  watcher,
		callback: callback,
	}, nil
}

// Run blocks until ctx is done or the watcher is closed.
func (w *BinaryWatcher) Run(ctx context.Context) {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
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
			if !w.relevant(event) {
				continue
			}
			debug.Logf("watch: %s %s", event.Op, event.Name)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if w.callback != nil {
				w.callback()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			debug.Logf("watch error: %v", err)

		case <-ctx.Done():
			return
		}
	}
}

func (w *BinaryWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

// Close stops watching.
func (w *BinaryWatcher) Close() error {
	return w.watcher.Close()
}
