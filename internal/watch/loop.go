// Package watch keeps a source directory sorted by reacting to files as
// they are created.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"downsort/internal/errors"
	"downsort/internal/history"
	"downsort/internal/log"
	"downsort/internal/organize"
	"downsort/pkg/types"
)

// State is the lifecycle position of a Loop.
type State int

const (
	StateStarting State = iota
	StateWatching
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateWatching:
		return "watching"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Options configure a Loop.
type Options struct {
	InitialScan bool        // Sort files already present before reacting to events
	HistoryPath string      // Where moves are persisted on shutdown; empty disables history
	QueueSize   int         // Pending event capacity; DefaultQueueSize if zero
	Logger      *log.Logger // nil uses the default logger
}

// Status is a point-in-time view of a Loop.
type Status struct {
	State        State
	Root         string
	Directories  []string
	LastActivity time.Time
	Processed    int
	Stats        types.RunStats
}

// Loop watches one root and hands every new file to the organizer. Events
// are consumed by a single goroutine, so moves never race each other.
type Loop struct {
	engine  organize.Organizer
	root    string
	opts    Options
	logger  *log.Logger
	watcher *Watcher

	mutex        sync.RWMutex
	state        State
	processed    int
	lastActivity time.Time
	callback     func(types.OrganizeResult)

	stopOnce sync.Once
	stopChan chan struct{}
}

// New prepares a loop over root. Nothing is watched until Run.
func New(engine organize.Organizer, root string, opts Options) (*Loop, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.NewFileError("invalid watch directory", root, errors.InvalidPath, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		kind := errors.FileOperationFailed
		switch {
		case os.IsNotExist(err):
			kind = errors.FileNotFound
		case os.IsPermission(err):
			kind = errors.FileAccessDenied
		}
		return nil, errors.NewFileError("cannot access watch directory", abs, kind, err)
	}
	if !info.IsDir() {
		return nil, errors.NewFileError("watch target is not a directory", abs, errors.InvalidPath, nil)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.With(log.F("root", abs), log.F("run_id", engine.RunID()))

	watcher, err := NewWatcher(logger, opts.QueueSize)
	if err != nil {
		return nil, err
	}

	return &Loop{
		engine:   engine,
		root:     abs,
		opts:     opts,
		logger:   logger,
		watcher:  watcher,
		state:    StateStarting,
		stopChan: make(chan struct{}),
	}, nil
}

// SetCallback registers fn to receive the result of every file handled
// from an event.
func (l *Loop) SetCallback(fn func(types.OrganizeResult)) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.callback = fn
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.state
}

// Status returns the current status of the loop.
func (l *Loop) Status() Status {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return Status{
		State:        l.state,
		Root:         l.root,
		Directories:  l.watcher.Directories(),
		LastActivity: l.lastActivity,
		Processed:    l.processed,
		Stats:        l.engine.Stats(),
	}
}

// Stop asks a running loop to shut down. Run returns once shutdown is
// complete.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stopChan) })
}

func (l *Loop) setState(s State) {
	l.mutex.Lock()
	l.state = s
	l.mutex.Unlock()
	l.logger.With(log.F("state", s.String())).Debug("Watch state changed")
}

// Run watches until ctx is cancelled or Stop is called, then persists the
// history of the session and returns its statistics. The history lock is
// held for the whole session so a concurrent run or undo cannot interleave.
// Watcher errors are logged and never end the loop.
func (l *Loop) Run(ctx context.Context) (types.RunStats, error) {
	l.mutex.Lock()
	if l.state != StateStarting {
		l.mutex.Unlock()
		return l.engine.Stats(), errors.NewKind(errors.WatchFailed, "watch loop already ran", nil)
	}
	l.mutex.Unlock()

	lock, err := l.acquireHistory()
	if err != nil {
		l.abort()
		return l.engine.Stats(), err
	}
	defer lock.Release()

	// Subscribe before the initial pass so files arriving during it are
	// not missed; a file already moved by the pass is skipped later.
	if err := l.subscribe(l.root); err != nil {
		l.abort()
		return l.engine.Stats(), err
	}
	if err := l.watcher.Start(); err != nil {
		l.abort()
		return l.engine.Stats(), err
	}

	l.setState(StateWatching)
	l.logger.With(log.F("dry_run", l.engine.DryRun()), log.F("recursive", l.engine.Recursive())).Info("Watching for new files")

	if l.opts.InitialScan {
		l.logger.Info("Sorting existing files")
		if err := l.engine.Sweep(l.root, l.root); err != nil {
			l.logger.WithError(err).Error("Initial scan failed")
		}
	}

	events := l.watcher.Events()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-l.stopChan:
			break loop
		case ev, ok := <-events:
			if !ok {
				break loop
			}
			l.handle(ev)
		}
	}

	return l.shutdown(lock != nil)
}

func (l *Loop) acquireHistory() (*history.Lock, error) {
	if l.engine.DryRun() || l.opts.HistoryPath == "" {
		return nil, nil
	}
	return history.Acquire(l.opts.HistoryPath)
}

func (l *Loop) abort() {
	l.watcher.Stop()
	l.setState(StateStopped)
}

func (l *Loop) shutdown(persist bool) (types.RunStats, error) {
	l.setState(StateStopping)
	l.watcher.Stop()

	stats := l.engine.Stats()
	l.logger.With(
		log.F("scanned", stats.Scanned),
		log.F("moved", stats.Moved),
		log.F("skipped", stats.Skipped),
		log.F("unsupported", stats.Unsupported),
		log.F("errors", stats.Errors),
	).Info("Watch stopped")

	var err error
	if persist && l.engine.History().Len() > 0 {
		// The session already holds the lock, so save without re-acquiring.
		if err = l.engine.History().Save(l.opts.HistoryPath); err != nil {
			l.logger.WithError(err).Error("Failed to save move history")
		} else {
			l.logger.With(log.F("history", l.opts.HistoryPath), log.F("records", l.engine.History().Len())).Info("Saved move history")
		}
	}

	l.setState(StateStopped)
	return stats, err
}

// subscribe watches dir and, when the engine is recursive, every directory
// below it except category folders. Only a failure on dir itself is
// returned.
func (l *Loop) subscribe(dir string) error {
	if err := l.watcher.AddDirectory(dir); err != nil {
		return err
	}
	if !l.engine.Recursive() {
		return nil
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			l.logger.WithError(err).With(log.F("dir", path)).Warn("Cannot watch directory")
			if d != nil && d.IsDir() && path != dir {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() || path == dir {
			return nil
		}
		if l.engine.IsDestination(l.root, path) {
			return fs.SkipDir
		}
		if err := l.watcher.AddDirectory(path); err != nil {
			l.logger.WithError(err).With(log.F("dir", path)).Warn("Cannot watch directory")
			return fs.SkipDir
		}
		return nil
	})
}

func (l *Loop) handle(ev FileEvent) {
	logger := l.logger.With(log.F("file", ev.Path))

	info, err := os.Lstat(ev.Path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("File vanished before it could be handled")
			return
		}
		logger.WithError(err).Warn("Cannot inspect new entry")
	}

	if info != nil && info.IsDir() {
		if !l.engine.Recursive() || l.engine.IsDestination(l.root, ev.Path) {
			return
		}
		logger.Info("New directory, watching")
		if err := l.subscribe(ev.Path); err != nil {
			logger.WithError(err).Error("Cannot watch new directory")
		}
		// Files may have landed before the subscription existed.
		if err := l.engine.Sweep(l.root, ev.Path); err != nil {
			logger.WithError(err).Error("Cannot sort new directory")
		}
		l.touch()
		return
	}

	result := l.engine.MoveFile(l.root, ev.Path)
	l.touch()

	l.mutex.RLock()
	cb := l.callback
	l.mutex.RUnlock()
	if cb != nil {
		cb(result)
	}
}

func (l *Loop) touch() {
	l.mutex.Lock()
	l.processed++
	l.lastActivity = time.Now()
	l.mutex.Unlock()
}
