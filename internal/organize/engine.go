package organize

import (
	"os"
	"path/filepath"
	"sync"

	"downsort/internal/config"
	"downsort/internal/errors"
	"downsort/internal/history"
	"downsort/internal/log"
	"downsort/pkg/types"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
)

// Options control a single run.
type Options struct {
	DryRun    bool        // Report moves without touching the filesystem
	Recursive bool        // Descend into subdirectories of the source
	Logger    *log.Logger // Sink for engine events; nil uses the default logger
}

// Engine sorts files into category folders. An Engine is meant for one run:
// its statistics and history accumulate until the run ends.
type Engine struct {
	config     *config.Config
	classifier *Classifier
	ignore     []glob.Glob
	dryRun     bool
	recursive  bool
	logger     *log.Logger
	runID      string

	mu sync.Mutex // Serializes conflict resolution and rename

	statsMu sync.Mutex
	stats   types.RunStats

	history *history.Store
	lock    *history.Lock // Held from Begin until Persist or Release
}

// New creates an Engine for cfg. The configuration is validated first; an
// invalid one is rejected before any file is looked at.
func New(cfg *config.Config, opts Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ignore, err := cfg.IgnoreMatchers()
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	runID := uuid.NewString()

	return &Engine{
		config:     cfg,
		classifier: NewClassifier(cfg.Categories),
		ignore:     ignore,
		dryRun:     opts.DryRun,
		recursive:  opts.Recursive,
		logger:     logger.With(log.F("run_id", runID)),
		runID:      runID,
		history:    history.NewStore(),
	}, nil
}

// RunID identifies this run in log entries.
func (e *Engine) RunID() string {
	return e.runID
}

// DryRun returns whether the engine is in dry run mode
func (e *Engine) DryRun() bool {
	return e.dryRun
}

// Recursive returns whether subdirectories are descended.
func (e *Engine) Recursive() bool {
	return e.recursive
}

// History returns the moves made so far.
func (e *Engine) History() *history.Store {
	return e.history
}

// Stats returns a snapshot of the run counters.
func (e *Engine) Stats() types.RunStats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

func (e *Engine) record(o types.Outcome) {
	e.statsMu.Lock()
	e.stats.Record(o)
	e.statsMu.Unlock()
}

func (e *Engine) scanned() {
	e.statsMu.Lock()
	e.stats.Scanned++
	e.statsMu.Unlock()
}

// Organize sorts the files in dir, descending into subdirectories when the
// engine is recursive. A missing, unreadable or non-directory source is
// returned as an error. Failures below the source are counted and logged
// but never abort the run.
func (e *Engine) Organize(dir string) (types.RunStats, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return e.Stats(), errors.NewFileError("invalid source directory", dir, errors.InvalidPath, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return e.Stats(), fileError("cannot access source directory", root, err)
	}
	if !info.IsDir() {
		return e.Stats(), errors.NewFileError("source is not a directory", root, errors.InvalidPath, nil)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return e.Stats(), fileError("cannot read source directory", root, err)
	}

	logger := e.logger.With(log.F("source", root), log.F("dry_run", e.dryRun), log.F("recursive", e.recursive))
	if len(entries) == 0 {
		logger.Info("No files in source directory")
		return e.Stats(), nil
	}

	logger.Info("Organizing directory")
	e.walk(root, root, entries)
	return e.Stats(), nil
}

// Sweep organizes the entries of dir, which lies at or below root. Relative
// category folders are resolved against root. Used by watch mode for its
// initial pass and for directories that appear while watching.
func (e *Engine) Sweep(root, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fileError("cannot read directory", dir, err)
	}
	e.walk(root, dir, entries)
	return nil
}

func (e *Engine) walk(root, dir string, entries []os.DirEntry) {
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if !entry.IsDir() {
			e.MoveFile(root, path)
			continue
		}
		e.scanned()

		if !e.recursive {
			e.record(types.OutcomeSkipped)
			continue
		}
		if e.IsDestination(root, path) {
			e.logger.With(log.F("dir", path)).Debug("Destination folder, not descending")
			e.record(types.OutcomeSkipped)
			continue
		}

		e.logger.With(log.F("dir", path)).Info("Entering directory")
		sub, err := os.ReadDir(path)
		if err != nil {
			e.record(types.OutcomeFailed)
			readErr := fileError("cannot read directory", path, err)
			if errors.IsFileAccessDenied(readErr) {
				e.logger.WithError(readErr).Warn("Permission denied, skipping directory")
			} else {
				e.logger.WithError(readErr).Error("Skipping unreadable directory")
			}
			continue
		}
		e.walk(root, path, sub)
	}
}

// IsDestination reports whether path is the destination folder of some
// category for a run rooted at root.
func (e *Engine) IsDestination(root, path string) bool {
	path = filepath.Clean(path)
	for _, cat := range e.config.Categories {
		if destinationDir(root, cat) == path {
			return true
		}
	}
	return false
}

// destinationDir resolves a category folder; relative folders live under
// the run root.
func destinationDir(root string, cat config.Category) string {
	if filepath.IsAbs(cat.Folder) {
		return filepath.Clean(cat.Folder)
	}
	return filepath.Join(root, cat.Folder)
}

// Begin takes the history lock for path before any file is touched, so a
// run that cannot record its moves fails without moving anything. The lock
// is held until Persist or Release. Dry runs never lock.
func (e *Engine) Begin(path string) error {
	if e.dryRun || e.lock != nil {
		return nil
	}
	lock, err := history.Acquire(path)
	if err != nil {
		return err
	}
	e.lock = lock
	return nil
}

// Release drops the lock taken by Begin. It is safe to call when no lock
// is held.
func (e *Engine) Release() error {
	lock := e.lock
	e.lock = nil
	return lock.Release()
}

// Persist writes the run's history to path unless this is a dry run or
// nothing moved, then releases the history lock. Without a prior Begin the
// lock is taken only for the write.
func (e *Engine) Persist(path string) error {
	if e.dryRun {
		return nil
	}
	defer e.Release()
	if e.history.Len() == 0 {
		return nil
	}
	if e.lock == nil {
		lock, err := history.Acquire(path)
		if err != nil {
			return err
		}
		e.lock = lock
	}

	if err := e.history.Save(path); err != nil {
		return err
	}
	e.logger.With(log.F("history", path), log.F("records", e.history.Len())).Info("Saved move history")
	return nil
}
