package app

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ConfigWatcher polls a configuration file and triggers a callback each
// time its modification time moves forward.
type ConfigWatcher struct {
	path          string
	checkInterval time.Duration

	mu       sync.Mutex
	baseline time.Time
	onChange func()
	stopCh   chan struct{}
	done     chan struct{}
}

// NewConfigWatcher creates a watcher for the file at path. The file must
// exist; its current modification time is the baseline.
func NewConfigWatcher(path string, checkInterval time.Duration) (*ConfigWatcher, error) {
	if checkInterval <= 0 {
		return nil, errors.New("app: watch interval must be positive")
	}
	// Resolve symlinks so an editor replacing the target is noticed.
	if real, err := filepath.EvalSymlinks(path); err == nil {
		path = real
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &ConfigWatcher{
		path:          path,
		checkInterval: checkInterval,
		baseline:      info.ModTime(),
	}, nil
}

// OnChange sets the callback to invoke when the file changes. The callback
// runs on the watcher goroutine.
func (w *ConfigWatcher) OnChange(callback func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = callback
}

// Start begins watching in a background goroutine. Starting a running
// watcher does nothing.
func (w *ConfigWatcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopCh != nil {
		return
	}
	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})
	go w.watchLoop(w.stopCh, w.done)
}

// Stop stops the watcher goroutine and waits for it to exit.
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	stopCh, done := w.stopCh, w.done
	w.stopCh, w.done = nil, nil
	w.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-done
}

func (w *ConfigWatcher) watchLoop(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !w.checkForUpdate() {
				continue
			}
			w.mu.Lock()
			cb := w.onChange
			w.mu.Unlock()
			if cb != nil {
				cb()
			}
		}
	}
}

// checkForUpdate reports whether the file is newer than the baseline and
// moves the baseline forward if so.
func (w *ConfigWatcher) checkForUpdate() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !info.ModTime().After(w.baseline) {
		return false
	}
	w.baseline = info.ModTime()
	return true
}

// Path returns the watched file.
func (w *ConfigWatcher) Path() string {
	return w.path
}

// Baseline returns the modification time of the last change seen.
func (w *ConfigWatcher) Baseline() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.baseline
}

// ResetBaseline sets the baseline to the file's current modification time
// without firing the callback.
func (w *ConfigWatcher) ResetBaseline() {
	if info, err := os.Stat(w.path); err == nil {
		w.mu.Lock()
		w.baseline = info.ModTime()
		w.mu.Unlock()
	}
}
