// Package fsutil holds the filesystem primitives the organizer relies on:
// a rename that never replaces an existing target, and atomic file writes.
package fsutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// RenameNoReplace moves src to dst and fails with an error matching
// fs.ErrExist if dst already exists. On Linux the check and the rename are a
// single renameat2 call; elsewhere dst is re-checked immediately before
// os.Rename.
func RenameNoReplace(src, dst string) error {
	return renameNoReplace(src, dst)
}

// renameChecked is the portable fallback.
func renameChecked(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: syscall.EEXIST}
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.Rename(src, dst)
}

// WriteFileAtomic writes data to a temp file beside path, syncs it, and
// renames it over path, so readers see either the old or the new content.
func WriteFileAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once the rename succeeded
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
