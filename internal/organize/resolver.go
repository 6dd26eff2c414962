package organize

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"downsort/internal/errors"
)

// MaxConflictAttempts bounds the name(N).ext search.
const MaxConflictAttempts = 1000

// ResolveConflict returns candidate if nothing exists there, otherwise the
// first free "name(N).ext" sibling. The answer is only advisory: callers
// must rename with fsutil.RenameNoReplace, which rejects a path claimed
// in the meantime.
func ResolveConflict(candidate string) (string, error) {
	free, err := isFree(candidate)
	if err != nil {
		return "", err
	}
	if free {
		return candidate, nil
	}

	dir := filepath.Dir(candidate)
	name := filepath.Base(candidate)
	ext := rawExtension(name)
	stem := strings.TrimSuffix(name, ext)

	for n := 1; n <= MaxConflictAttempts; n++ {
		next := filepath.Join(dir, fmt.Sprintf("%s(%d)%s", stem, n, ext))
		free, err := isFree(next)
		if err != nil {
			return "", err
		}
		if free {
			return next, nil
		}
	}
	return "", errors.NewFileError(
		fmt.Sprintf("no free destination name after %d attempts", MaxConflictAttempts),
		candidate, errors.ConflictLimit, nil)
}

func isFree(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return false, nil
	}
	if os.IsNotExist(err) {
		return true, nil
	}
	return false, fileError("cannot check destination", path, err)
}

// fileError classifies an OS error into a FileError kind.
func fileError(msg, path string, err error) error {
	kind := errors.FileOperationFailed
	switch {
	case os.IsNotExist(err):
		kind = errors.FileNotFound
	case os.IsPermission(err):
		kind = errors.FileAccessDenied
	}
	return errors.NewFileError(msg, path, kind, err)
}
