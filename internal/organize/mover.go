package organize

import (
	"io/fs"
	"os"
	"path/filepath"

	"downsort/internal/errors"
	"downsort/internal/fsutil"
	"downsort/internal/history"
	"downsort/internal/log"
	"downsort/pkg/types"
)

// maxClaimAttempts bounds how often a move re-resolves its destination after
// losing the name to a concurrent writer.
const maxClaimAttempts = 3

// MoveFile sorts one file into its category folder and counts it in the run
// statistics. Relative category folders are resolved against root.
// Non-regular files and ignored names are skipped, unknown extensions are
// left in place, and failures are reported in the result rather than
// aborting the caller. In a dry run the planned destination is resolved
// against the current tree, so two files with one name plan the same path.
func (e *Engine) MoveFile(root, path string) types.OrganizeResult {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	e.scanned()
	result := e.moveFile(root, path)
	e.record(result.Outcome)
	return result
}

func (e *Engine) moveFile(root, path string) types.OrganizeResult {
	result := types.OrganizeResult{SourcePath: path, DryRun: e.dryRun}
	logger := e.logger.With(log.F("file", path))

	info, err := os.Lstat(path)
	if err != nil {
		result.Outcome = types.OutcomeFailed
		result.Error = fileError("cannot stat file", path, err)
		logger.WithError(result.Error).Error("Failed to inspect file")
		return result
	}
	if !info.Mode().IsRegular() {
		result.Outcome = types.OutcomeSkipped
		return result
	}

	name := info.Name()
	if e.ignored(name) {
		result.Outcome = types.OutcomeSkipped
		logger.Debug("Ignored by pattern")
		return result
	}

	ext := Extension(name)
	cat, ok := e.classifier.Classify(ext)
	if !ok {
		result.Outcome = types.OutcomeUnsupported
		logger.With(log.F("extension", ext)).Info("Unsupported extension, leaving in place")
		return result
	}
	result.Category = cat.Name
	logger = logger.With(log.F("category", cat.Name))

	destDir := destinationDir(root, cat)
	if filepath.Dir(path) == destDir {
		result.Outcome = types.OutcomeSkipped
		logger.Debug("Already in destination folder")
		return result
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dryRun {
		dest, err := ResolveConflict(filepath.Join(destDir, name))
		if err != nil {
			result.Outcome = types.OutcomeFailed
			result.Error = err
			logger.WithError(err).Error("Failed to plan move")
			return result
		}
		result.DestinationPath = dest
		result.Outcome = types.OutcomeMoved
		logger.With(log.F("to", dest)).Info("Would move file")
		return result
	}

	if err := e.ensureDir(destDir); err != nil {
		result.Outcome = types.OutcomeFailed
		result.Error = err
		logger.WithError(err).Error("Destination folder unavailable")
		return result
	}

	dest, err := e.relocate(path, filepath.Join(destDir, name))
	if err != nil {
		result.Outcome = types.OutcomeFailed
		result.Error = err
		logger.WithError(err).Error("Failed to move file")
		return result
	}

	e.history.Append(history.NewRecord(path, dest))
	result.DestinationPath = dest
	result.Outcome = types.OutcomeMoved
	logger.With(log.F("to", dest)).Info("Moved file")
	return result
}

func (e *Engine) ignored(name string) bool {
	for _, g := range e.ignore {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func (e *Engine) ensureDir(dir string) error {
	if e.config.Settings.CreateDirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fileError("cannot create destination folder", dir, err)
		}
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fileError("destination folder unavailable", dir, err)
	}
	if !info.IsDir() {
		return errors.NewFileError("destination is not a directory", dir, errors.InvalidPath, nil)
	}
	return nil
}

// relocate renames src to a free name derived from candidate. The rename
// itself refuses existing targets, so a name taken between resolution and
// rename is retried rather than overwritten.
func (e *Engine) relocate(src, candidate string) (string, error) {
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		dest, err := ResolveConflict(candidate)
		if err != nil {
			return "", err
		}
		err = fsutil.RenameNoReplace(src, dest)
		if err == nil {
			return dest, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fileError("cannot move file", src, err)
		}
		e.logger.With(log.F("file", src), log.F("to", dest)).Warn("Destination claimed concurrently, resolving again")
	}
	return "", errors.NewFileError("destination kept being claimed", candidate, errors.ConflictLimit, nil)
}
