package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ccb/internal/logging"
)

// debounceWindow is how long file events must settle before a reload.
// Editors write, truncate, and rename in bursts; reloading mid-burst
// would hand subscribers a half-written file.
const debounceWindow = 500 * time.Millisecond

// subscriberBuffer bounds each subscriber channel. Slow subscribers
// drop reloads rather than stall the watch loop.
const subscriberBuffer = 4

// WatcherStats tracks watcher activity.
type WatcherStats struct {
	Events        int
	Reloads       int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
}

// Watcher reloads the config file after edits settle and fans the new
// value out to subscribers. It watches the containing directory, not the
// file itself, so save-by-rename editors do not orphan the watch.
type Watcher struct {
	mu          sync.RWMutex
	fsw         *fsnotify.Watcher
	path        string
	dir         string
	pending     map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	subs        []chan Config
	stats       WatcherStats
}

// NewWatcher creates a watcher for the config file at path.
func NewWatcher(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	return &Watcher{
		fsw:         fsw,
		path:        filepath.Clean(abs),
		dir:         filepath.Dir(abs),
		pending:     make(map[string]time.Time),
		debounceDur: debounceWindow,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Safe to call once; subsequent calls are no-ops.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		logging.ConfigWarn("Could not create config directory %s: %v", w.dir, err)
	}
	if err := w.fsw.Add(w.dir); err != nil {
		logging.ConfigWarn("Could not watch config directory %s: %v", w.dir, err)
	}

	go w.run(ctx)

	logging.Config("Config watcher started for %s", w.path)
	return nil
}

// Stop halts the watch loop and closes all subscriber channels.
// Safe to call more than once.
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

	if err := w.fsw.Close(); err != nil {
		logging.ConfigError("Failed to close file watcher: %v", err)
	}

	w.mu.Lock()
	for _, ch := range w.subs {
		close(ch)
	}
	w.subs = nil
	w.mu.Unlock()

	logging.Config("Config watcher stopped")
}

// Subscribe returns a channel that receives the new Config after each
// successful reload. The channel is closed by Stop.
func (w *Watcher) Subscribe() <-chan Config {
	w.mu.Lock()
	defer w.mu.Unlock()

	ch := make(chan Config, subscriberBuffer)
	w.subs = append(w.subs, ch)
	return ch
}

// IsWatching reports whether the watch loop is active.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Stats returns a snapshot of watcher activity.
func (w *Watcher) Stats() WatcherStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.ConfigError("Config watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		case <-ticker.C:
			w.processDebounced()
		}
	}
}

// handleEvent records changes to the config file for debounced reload.
// Events for sibling files in the watched directory are ignored.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
		return
	}

	w.mu.Lock()
	w.stats.Events++
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	w.pending[w.path] = time.Now()
	w.mu.Unlock()

	logging.ConfigDebug("Config file event: %s %s", event.Op, event.Name)
}

// processDebounced reloads once events for the file have settled.
func (w *Watcher) processDebounced() {
	w.mu.Lock()
	var settled []string
	now := time.Now()
	for path, lastEvent := range w.pending {
		if now.Sub(lastEvent) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for range settled {
		w.reload()
	}
}

// reload re-reads the config file and fans the result out. A deleted file
// reloads as pure defaults. Validation issues are logged but do not block
// the notification; subscribers get the config as loaded.
func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		logging.ConfigWarn("Config reload failed: %v", err)
		logging.Audit().ConfigEvent(logging.AuditConfigInvalid, w.path, false, err.Error())
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
		return
	}

	for _, issue := range cfg.Validate() {
		logging.ConfigWarn("Config validation: %s", issue)
	}

	w.mu.Lock()
	w.stats.Reloads++
	subs := make([]chan Config, len(w.subs))
	copy(subs, w.subs)
	w.mu.Unlock()

	logging.Audit().ConfigEvent(logging.AuditConfigReload, w.path, true, "")
	logging.Config("Config reloaded from %s", w.path)

	for _, ch := range subs {
		select {
		case ch <- cfg:
		default:
			// Drop if the subscriber is not keeping up.
		}
	}
}
