package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/moolen/gameterm/internal/logging"
)

// PolicyCallback is called when the policy file is successfully
// (re)loaded. If it returns an error after the initial load, the error
// is logged and watching continues.
type PolicyCallback func(policy *PolicyFile) error

// PolicyWatcherConfig holds configuration for the PolicyWatcher.
type PolicyWatcherConfig struct {
	// FilePath is the path to the policy YAML file to watch
	FilePath string

	// DebounceMillis coalesces change events within this period into a
	// single reload. Default: 500ms
	DebounceMillis int
}

// PolicyWatcher watches the policy file and triggers reloads, debounced
// so that editor save sequences cause one reload.
//
// An invalid file during reload is logged and skipped; the previously
// applied policy stays in effect.
type PolicyWatcher struct {
	config   PolicyWatcherConfig
	callback PolicyCallback
	logger   *logging.Logger
	cancel   context.CancelFunc
	stopped  chan struct{}
	ready    chan struct{}
	mu       sync.Mutex

	debounceTimer *time.Timer
}

// NewPolicyWatcher creates a watcher for the given policy file.
func NewPolicyWatcher(config PolicyWatcherConfig, callback PolicyCallback) (*PolicyWatcher, error) {
	if config.FilePath == "" {
		return nil, fmt.Errorf("FilePath cannot be empty")
	}

	if callback == nil {
		return nil, fmt.Errorf("callback cannot be nil")
	}

	if config.DebounceMillis == 0 {
		config.DebounceMillis = 500
	}

	return &PolicyWatcher{
		config:   config,
		callback: callback,
		logger:   logging.GetLogger("config.watcher"),
		stopped:  make(chan struct{}),
		ready:    make(chan struct{}),
	}, nil
}

// Start loads the policy, applies it through the callback, and watches
// the file in the background. It returns once the watch is in place.
func (w *PolicyWatcher) Start(ctx context.Context) error {
	initial, err := LoadPolicyFile(w.config.FilePath)
	if err != nil {
		return fmt.Errorf("failed to load initial policy: %w", err)
	}

	if err := w.callback(initial); err != nil {
		return fmt.Errorf("initial callback failed: %w", err)
	}

	w.logger.Info("Loaded initial policy from %s (%d commands)", w.config.FilePath, len(initial.Commands))

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.cancel = cancel

	go w.watchLoop(watchCtx)

	select {
	case <-w.ready:
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	case <-time.After(5 * time.Second):
		cancel()
		return fmt.Errorf("timeout waiting for file watcher to initialize")
	}

	return nil
}

// signalReady closes the ready channel exactly once
func (w *PolicyWatcher) signalReady() {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.ready:
	default:
		close(w.ready)
	}
}

func (w *PolicyWatcher) watchLoop(ctx context.Context) {
	defer close(w.stopped)
	defer w.signalReady()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Error("Failed to create file watcher: %v", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(w.config.FilePath); err != nil {
		w.logger.Error("Failed to watch file %s: %v", w.config.FilePath, err)
		return
	}

	w.logger.Debug("watching %s for changes (debounce: %dms)", w.config.FilePath, w.config.DebounceMillis)
	w.signalReady()

	for {
		select {
		case <-ctx.Done():
			w.stopDebounce()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				w.logger.Warn("Watcher events channel closed")
				return
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			// Atomic writes replace the inode, so the watch must be re-added.
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(50 * time.Millisecond)
				if err := watcher.Add(w.config.FilePath); err != nil {
					w.logger.Warn("Failed to re-add watch after %s: %v", event.Op, err)
				}
			}
			w.handleFileChange(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				w.logger.Warn("Watcher errors channel closed")
				return
			}
			w.logger.Warn("Watcher error: %v", err)
		}
	}
}

// handleFileChange restarts the debounce timer.
func (w *PolicyWatcher) handleFileChange(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(
		time.Duration(w.config.DebounceMillis)*time.Millisecond,
		func() {
			w.reload(ctx)
		},
	)
}

func (w *PolicyWatcher) stopDebounce() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
}

func (w *PolicyWatcher) reload(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	policy, err := LoadPolicyFile(w.config.FilePath)
	if err != nil {
		w.logger.Warn("Failed to reload policy (keeping previous policy): %v", err)
		return
	}

	if err := w.callback(policy); err != nil {
		w.logger.Warn("Policy callback error (continuing to watch): %v", err)
		return
	}

	w.logger.Info("Policy reloaded from %s", w.config.FilePath)
}

// Stop stops watching and waits for the watch loop to exit.
func (w *PolicyWatcher) Stop(ctx context.Context) error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()

	select {
	case <-w.stopped:
		w.logger.Debug("stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for policy watcher to stop: %w", ctx.Err())
	}
}

// Name implements lifecycle.Component.
func (w *PolicyWatcher) Name() string {
	return "Policy Watcher"
}
