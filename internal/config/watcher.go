package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	// debouncetick is how often pending file events are checked.
	debounceTick = 100 * time.Millisecond
	// settleDelay is how long a file must stay quiet before a reload.
	// Editors often fire several WRITE events for one save.
	settleDelay = 500 * time.Millisecond
)

// Watcher reloads the configuration when the file changes and swaps an
// atomic snapshot. Readers call Current; credentials added after boot are
// visible on the next request without a restart.
type Watcher struct {
	path   string
	logger *zap.Logger

	current atomic.Pointer[Config]

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}

	debounceMu sync.Mutex
	debounce   map[string]time.Time

	onReload func(*Config)
}

// NewWatcher wraps an already-loaded configuration. Start must be called
// before changes are observed; Current works either way.
func NewWatcher(path string, initial *Config, logger *zap.Logger) *Watcher {
	w := &Watcher{
		path:     path,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		debounce: make(map[string]time.Time),
	}
	w.current.Store(initial)
	return w
}

// Current implements Snapshot.
func (w *Watcher) Current() *Config {
	return w.current.Load()
}

// OnReload registers a hook invoked after each successful reload.
func (w *Watcher) OnReload(fn func(*Config)) {
	w.onReload = fn
}

// Start begins watching the directory containing the config file. Watching
// the directory rather than the file survives editors that replace the file
// on save.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	w.watcher = watcher

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.logger.Info("config watcher started", zap.String("path", w.path))

	go w.run(ctx)
	return nil
}

// Stop halts the watcher and waits for the run loop to exit.
func (w *Watcher) Stop() {
	if w.watcher == nil {
		return
	}
	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(debounceTick)
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
			w.logger.Warn("config watcher error", zap.Error(err))
		case <-ticker.C:
			w.processDebounced()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Base(event.Name) != filepath.Base(w.path) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	w.debounceMu.Lock()
	w.debounce[event.Name] = time.Now()
	w.debounceMu.Unlock()
}

func (w *Watcher) processDebounced() {
	w.debounceMu.Lock()
	var pending []string
	now := time.Now()
	for name, last := range w.debounce {
		if now.Sub(last) >= settleDelay {
			pending = append(pending, name)
			delete(w.debounce, name)
		}
	}
	w.debounceMu.Unlock()

	if len(pending) == 0 {
		return
	}

	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous snapshot",
			zap.String("path", w.path), zap.Error(err))
		return
	}
	if err := cfg.Validate(); err != nil {
		w.logger.Warn("reloaded config invalid, keeping previous snapshot",
			zap.String("path", w.path), zap.Error(err))
		return
	}

	w.current.Store(cfg)
	w.logger.Info("config reloaded", zap.String("path", w.path))

	if w.onReload != nil {
		w.onReload(cfg)
	}
}
