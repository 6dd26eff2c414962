package watch

import (
	"os"
	"sync"
	"time"

	"downsort/internal/errors"
	"downsort/internal/log"

	"github.com/fsnotify/fsnotify"
)

// DefaultQueueSize is the capacity of the event queue between the fsnotify
// pump and its consumer.
const DefaultQueueSize = 64

// FileEvent is a creation detected by the watcher. Path may name a file or
// a directory; the consumer decides what to do with it.
type FileEvent struct {
	Path      string
	Op        fsnotify.Op
	Timestamp time.Time
}

// Watcher forwards fsnotify creation events into a bounded queue read by a
// single consumer.
type Watcher struct {
	// Directories being watched
	directories []string

	// Bounded queue of creation events
	events chan FileEvent

	// Closed to stop the pump
	stopChan chan struct{}

	// Closed when the pump goroutine has returned
	done chan struct{}

	fsWatcher *fsnotify.Watcher
	logger    *log.Logger

	mutex   sync.RWMutex
	running bool
	closed  bool
}

// NewWatcher creates a watcher with room for queueSize pending events.
func NewWatcher(logger *log.Logger, queueSize int) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.NewKind(errors.WatchFailed, "failed to create fsnotify watcher", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	return &Watcher{
		events:    make(chan FileEvent, queueSize),
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
		fsWatcher: fsWatcher,
		logger:    logger,
	}, nil
}

// AddDirectory subscribes to creations directly inside dir.
func (w *Watcher) AddDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		kind := errors.WatchFailed
		if os.IsNotExist(err) {
			kind = errors.FileNotFound
		}
		return errors.NewFileError("error accessing directory", dir, kind, err)
	}
	if !info.IsDir() {
		return errors.NewFileError("not a directory", dir, errors.InvalidPath, nil)
	}

	if err := w.fsWatcher.Add(dir); err != nil {
		return errors.NewFileError("failed to add directory to watcher", dir, errors.WatchFailed, err)
	}

	w.mutex.Lock()
	found := false
	for _, existing := range w.directories {
		if existing == dir {
			found = true
			break
		}
	}
	if !found {
		w.directories = append(w.directories, dir)
	}
	w.mutex.Unlock()

	w.logger.With(log.F("directory", dir)).Info("Watching directory")
	return nil
}

// Events returns the queue of creation events. It is closed once Stop
// returns.
func (w *Watcher) Events() <-chan FileEvent {
	return w.events
}

// Start runs the pump goroutine.
func (w *Watcher) Start() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.closed {
		return errors.NewKind(errors.WatchFailed, "watcher already stopped", nil)
	}
	if w.running {
		return errors.NewKind(errors.WatchFailed, "watcher already running", nil)
	}
	w.running = true

	go w.pump()
	return nil
}

func (w *Watcher) pump() {
	defer close(w.done)
	w.logger.Debug("Watcher event loop started")

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !event.Op.Has(fsnotify.Create) {
				continue
			}
			ev := FileEvent{Path: event.Name, Op: event.Op, Timestamp: time.Now()}

			// A full queue applies back-pressure instead of dropping events.
			select {
			case w.events <- ev:
			case <-w.stopChan:
				return
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(errors.NewKind(errors.WatchFailed, "fsnotify watcher error", err)).Error("Watcher error, continuing")

		case <-w.stopChan:
			return
		}
	}
}

// Stop closes the subscription, waits for the pump to exit and then closes
// the event queue. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.mutex.Lock()
	if w.closed {
		w.mutex.Unlock()
		return
	}
	w.closed = true
	wasRunning := w.running
	w.running = false
	close(w.stopChan)
	w.mutex.Unlock()

	if err := w.fsWatcher.Close(); err != nil {
		w.logger.WithError(err).Error("Error closing fsnotify watcher")
	}
	if wasRunning {
		<-w.done
	}
	close(w.events)
	w.logger.Debug("Watcher stopped")
}

// IsRunning returns whether the pump is active.
func (w *Watcher) IsRunning() bool {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	return w.running
}

// Directories returns the directories being watched.
func (w *Watcher) Directories() []string {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	dirs := make([]string, len(w.directories))
	copy(dirs, w.directories)
	return dirs
}
