package history

import (
	"os"
	"path/filepath"

	"downsort/internal/errors"

	"github.com/gofrs/flock"
)

// Lock is an exclusive advisory lock on a history file, held through a
// sibling "<path>.lock" file. The lock file stays on disk after Release;
// removing it would let two holders lock different inodes.
type Lock struct {
	fl   *flock.Flock
	path string
}

// Acquire takes the lock for path without waiting. It fails with
// HistoryLocked if another holder has it.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.NewHistoryError("cannot create history directory", path, errors.FileOperationFailed, err)
	}
	fl := flock.New(path + ".lock")
	ok, err := fl.TryLock()
	if err != nil {
		return nil, errors.NewHistoryError("cannot lock history", path, errors.FileOperationFailed, err)
	}
	if !ok {
		return nil, errors.NewHistoryError("history is in use by another run", path, errors.HistoryLocked, nil)
	}
	return &Lock{fl: fl, path: path}, nil
}

// Release drops the lock.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	return l.fl.Unlock()
}
