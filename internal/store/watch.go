package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchEvent describes the graph file after a change settled.
type WatchEvent struct {
	Path  string
	Graph Graph // valid only when Err is nil
	Err   error // ErrNotFound if removed, wraps ErrCorrupt if unparsable
}

// FileWatcher reports changes to a file-backed graph document. It watches the
// parent directory because Save replaces the file by rename.
type FileWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	path        string
	dir         string
	debounceDur time.Duration
	onChange    func(WatchEvent)
	onError     func(error)
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewFileWatcher creates a watcher for the graph file at path. onChange is
// called from the watcher goroutine once per burst of filesystem events.
func NewFileWatcher(path string, onChange func(WatchEvent)) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return &FileWatcher{
		watcher:     w,
		path:        abs,
		dir:         filepath.Dir(abs),
		debounceDur: 200 * time.Millisecond,
		onChange:    onChange,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// SetDebounce overrides how long the file must be quiet before onChange fires.
// Must be called before Start.
func (fw *FileWatcher) SetDebounce(d time.Duration) {
	fw.debounceDur = d
}

// SetErrorHandler sets the callback for errors reported by the underlying
// fsnotify watcher, such as event queue overflow. Must be called before Start.
func (fw *FileWatcher) SetErrorHandler(fn func(error)) {
	fw.onError = fn
}

// Start creates the directory if needed and begins watching. Non-blocking.
func (fw *FileWatcher) Start(ctx context.Context) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.running {
		return nil
	}

	if err := os.MkdirAll(fw.dir, 0755); err != nil {
		return fmt.Errorf("failed to create watched directory: %w", err)
	}
	if err := fw.watcher.Add(fw.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", fw.dir, err)
	}

	fw.running = true
	go fw.run(ctx, fw.watcher.Events, fw.watcher.Errors)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit. Safe to call
// more than once, and on a watcher that was never started.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if fw.watcher == nil {
		fw.mu.Unlock()
		return nil
	}
	wasRunning := fw.running
	fw.running = false
	w := fw.watcher
	fw.watcher = nil
	fw.mu.Unlock()

	if wasRunning {
		close(fw.stopCh)
		<-fw.doneCh
	}
	return w.Close()
}

func (fw *FileWatcher) run(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	defer close(fw.doneCh)

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.stopCh:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != fw.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
				!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(fw.debounceDur)
			} else {
				timer.Reset(fw.debounceDur)
			}
			timerCh = timer.C
		case <-timerCh:
			timerCh = nil
			fw.onChange(fw.inspect())
		case err, ok := <-errs:
			if !ok {
				return
			}
			if fw.onError != nil {
				fw.onError(fmt.Errorf("watch %s: %w", fw.dir, err))
			}
		}
	}
}

// inspect reads the current file contents into a WatchEvent.
func (fw *FileWatcher) inspect() WatchEvent {
	ev := WatchEvent{Path: fw.path}
	data, err := os.ReadFile(fw.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			ev.Err = ErrNotFound
		} else {
			ev.Err = err
		}
		return ev
	}
	ev.Graph, ev.Err = DecodeGraph(data)
	return ev
}
