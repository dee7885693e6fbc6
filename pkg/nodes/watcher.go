package nodes

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/teslashibe/go-wayfinder/internal/log"
)

// DefaultWatchDebounce batches the bursts of events editors emit on save.
const DefaultWatchDebounce = 300 * time.Millisecond

// Watcher reloads a scene file into a Registry whenever the file changes.
// A file that fails to parse leaves the registry untouched.
type Watcher struct {
	path     string
	registry *Registry
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	reloads int
	onLoad  func(count int, warnings []error)
}

// NewWatcher creates a watcher for path. The parent directory is watched
// rather than the file so that atomic rename-on-save is picked up.
func NewWatcher(path string, registry *Registry) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, err
	}

	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:     abs,
		registry: registry,
		debounce: DefaultWatchDebounce,
		watcher:  fw,
	}, nil
}

// SetDebounce changes the quiet period before a reload. Call before Run.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// OnLoad registers a callback fired after every successful reload.
func (w *Watcher) OnLoad(fn func(count int, warnings []error)) {
	w.mu.Lock()
	w.onLoad = fn
	w.mu.Unlock()
}

// Reloads returns how many successful reloads have happened.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

// Run processes file events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("scene watcher error", "path", w.path, "error", err)

		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	loaded, err := Load(w.path)
	if err != nil {
		log.Warn("scene reload failed, keeping previous nodes", "path", w.path, "error", err)
		return
	}

	w.registry.SetNodes(loaded)
	warnings := w.registry.Refresh()

	w.mu.Lock()
	w.reloads++
	cb := w.onLoad
	w.mu.Unlock()

	log.Info("scene reloaded", "path", w.path, "nodes", len(loaded), "warnings", len(warnings))
	if cb != nil {
		cb(len(loaded), warnings)
	}
}
