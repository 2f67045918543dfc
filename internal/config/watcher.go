package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DebounceDelay is the default delay for debouncing file system events.
const DebounceDelay = 100 * time.Millisecond

// FileWatcher calls a function whenever a file is written or replaced.
// Bursts of events within the debounce delay produce one call.
//
// The parent directory is watched so editors that save by renaming a
// temporary file over the target are noticed.
type FileWatcher struct {
	path     string
	onChange func(path string)
	logger   *slog.Logger
	watcher  *fsnotify.Watcher

	debounceDelay time.Duration
	debounceMu    sync.Mutex
	debounceTimer *time.Timer

	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewFileWatcher watches path and calls onChange after each change.
func NewFileWatcher(path string, logger *slog.Logger, onChange func(path string)) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, not the file, so replaced files are still seen
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	fw := &FileWatcher{
		path:          abs,
		onChange:      onChange,
		logger:        logger,
		watcher:       w,
		debounceDelay: DebounceDelay,
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go fw.eventLoop()
	return fw, nil
}

// SetDebounceDelay changes the debounce delay for later events.
func (fw *FileWatcher) SetDebounceDelay(d time.Duration) {
	fw.debounceMu.Lock()
	defer fw.debounceMu.Unlock()
	fw.debounceDelay = d
}

// Close stops the watcher. No callback starts after Close returns.
func (fw *FileWatcher) Close() error {
	var err error
	fw.once.Do(func() {
		close(fw.done)
		err = fw.watcher.Close()
		// Wait for the event loop before touching the timer
		<-fw.stopped

		fw.debounceMu.Lock()
		if fw.debounceTimer != nil {
			fw.debounceTimer.Stop()
			fw.debounceTimer = nil
		}
		fw.debounceMu.Unlock()
	})
	return err
}

func (fw *FileWatcher) eventLoop() {
	defer close(fw.stopped)
	for {
		select {
		case <-fw.done:
			return
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(ev)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("File watcher error", "path", fw.path, "error", err)
		}
	}
}

func (fw *FileWatcher) handleEvent(ev fsnotify.Event) {
	// Other files in the same directory
	if filepath.Clean(ev.Name) != fw.path {
		return
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return
	}
	fw.logger.Debug("Watched file changed", "path", fw.path, "op", ev.Op.String())

	fw.debounceMu.Lock()
	defer fw.debounceMu.Unlock()
	select {
	case <-fw.done:
		return
	default:
	}
	// Restart the debounce window
	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}
	fw.debounceTimer = time.AfterFunc(fw.debounceDelay, fw.fire)
}

func (fw *FileWatcher) fire() {
	// The timer may fire while Close is running
	select {
	case <-fw.done:
		return
	default:
	}
	fw.onChange(fw.path)
}
