// Package watcher notifies a callback when a watched file changes on disk.
package watcher

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// debounceWindow collapses editor write bursts into a single callback.
const debounceWindow = 250 * time.Millisecond

// Watcher observes a single file and invokes onChange after it is
// written, created, or renamed. The parent directory is watched rather
// than the file itself so replace-by-rename saves are still seen.
type Watcher struct {
	path     string
	onChange func()

	mu      sync.Mutex
	fw      *fsnotify.Watcher
	timer   *time.Timer
	done    chan struct{}
	started bool
}

// New creates a watcher for path. onChange runs on the watcher
// goroutine and must not block.
func New(path string, onChange func()) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve watch path: %w", err)
	}
	return &Watcher{path: abs, onChange: onChange}, nil
}

// Start begins watching. It is an error to start a watcher twice.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return fmt.Errorf("watcher for %s already started", w.path)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		_ = fw.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	w.fw = fw
	w.done = make(chan struct{})
	w.started = true

	go w.loop()
	return nil
}

// Stop ends watching and releases the underlying notifier.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return nil
	}
	close(w.done)
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.started = false
	return w.fw.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleChange()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("path", w.path).Msg("File watcher error")
		}
	}
}

// scheduleChange arms (or re-arms) the debounce timer.
func (w *Watcher) scheduleChange() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceWindow, w.onChange)
}
