package history

import (
	"os"
	"path/filepath"

	"downsort/internal/errors"
	"downsort/internal/fsutil"
	"downsort/internal/log"
	"downsort/pkg/types"
)

// Undo restores every move recorded in the log at path, newest first, and
// then deletes the log. A missing or unparsable log aborts before anything
// is touched. A record that cannot be restored is logged and counted in
// Errors; the remaining records are still attempted. Restores are counted
// in Moved.
func Undo(path string, logger *log.Logger) (types.RunStats, error) {
	var stats types.RunStats
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.With(log.F("history", path))

	// A missing log must not leave a directory or lock file behind.
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return stats, errors.NewHistoryError("history not found", path, errors.HistoryNotFound, err)
	}

	lock, err := Acquire(path)
	if err != nil {
		return stats, err
	}
	defer lock.Release()

	records, err := Load(path)
	if err != nil {
		return stats, err
	}
	stats.Scanned = len(records)
	logger.Infof("Undoing %d moves", len(records))

	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		l := logger.With(log.F("from", rec.To), log.F("to", rec.From))
		if err := restore(rec); err != nil {
			stats.Errors++
			l.WithError(err).Error("Failed to restore file")
			continue
		}
		stats.Moved++
		l.Info("Restored file")
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return stats, errors.NewHistoryError("cannot remove history", path, errors.FileOperationFailed, err)
	}
	return stats, nil
}

// restore moves rec.To back to rec.From, never overwriting a file that has
// appeared at the origin since.
func restore(rec Record) error {
	if err := os.MkdirAll(filepath.Dir(rec.From), 0755); err != nil {
		return errors.NewFileError("cannot recreate origin folder", filepath.Dir(rec.From), errors.FileOperationFailed, err)
	}
	if err := fsutil.RenameNoReplace(rec.To, rec.From); err != nil {
		kind := errors.FileOperationFailed
		switch {
		case os.IsNotExist(err):
			kind = errors.FileNotFound
		case os.IsPermission(err):
			kind = errors.FileAccessDenied
		case errors.Is(err, os.ErrExist):
			kind = errors.InvalidPath
		}
		return errors.NewFileError("cannot restore file", rec.To, kind, err)
	}
	return nil
}
