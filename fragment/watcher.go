package fragment

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherCallbacks receive the outcome of each debounced reload.
type WatcherCallbacks struct {
	OnReload func(store *Store, changed []string)
	OnError  func(err error)
}

// Watcher reloads a Registry when .sql files below its root change.
// Bursts of events are collapsed into one reload after the debounce window.
type Watcher struct {
	mu        sync.Mutex
	watcher   *fsnotify.Watcher
	registry  *Registry
	callbacks WatcherCallbacks
	debounce  time.Duration
	pending   map[string]time.Time
	stopCh    chan struct{}
	doneCh    chan struct{}
	running   bool
}

// NewWatcher creates a watcher for registry. A zero debounce uses 300ms.
func NewWatcher(registry *Registry, debounce time.Duration, callbacks WatcherCallbacks) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}

	return &Watcher{
		watcher:   watcher,
		registry:  registry,
		callbacks: callbacks,
		debounce:  debounce,
		pending:   make(map[string]time.Time),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// Start registers every directory below the root and starts the event loop.
// It does not block. The watcher only counts as running once the loop is up.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	if err := w.addTree(w.registry.Root()); err != nil {
		return err
	}

	w.running = true

	go w.run(ctx)

	return nil
}

// Stop stops the event loop and releases the underlying watcher.
// Stopping a watcher that never started only releases the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	return w.watcher.Close()
}

// Done is closed when the event loop exits.
func (w *Watcher) Done() <-chan struct{} {
	return w.doneCh
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}

		return w.watcher.Add(path)
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(max(w.debounce/3, 10*time.Millisecond))
	defer ticker.Stop()

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

			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}

			w.reportError(err)

		case <-ticker.C:
			w.processPending()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// new directories must be watched too
			if err := w.addTree(event.Name); err != nil {
				w.reportError(err)
			}

			w.mark(event.Name)

			return
		}
	}

	if !IsSQLFile(event.Name) {
		return
	}

	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	w.mark(event.Name)
}

func (w *Watcher) mark(name string) {
	w.mu.Lock()
	w.pending[name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processPending() {
	w.mu.Lock()

	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}

	now := time.Now()
	for _, at := range w.pending {
		if now.Sub(at) < w.debounce {
			w.mu.Unlock()
			return
		}
	}

	changed := make([]string, 0, len(w.pending))
	for name := range w.pending {
		changed = append(changed, name)
	}

	w.pending = make(map[string]time.Time)
	w.mu.Unlock()

	sort.Strings(changed)

	store, err := w.registry.Reload()
	if err != nil {
		w.reportError(err)
		return
	}

	if w.callbacks.OnReload != nil {
		w.callbacks.OnReload(store, changed)
	}
}

func (w *Watcher) reportError(err error) {
	if w.callbacks.OnError != nil {
		w.callbacks.OnError(err)
	}
}
