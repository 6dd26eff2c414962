package fsutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenameNoReplace(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(src, []byte("source"), 0644))

	require.NoError(t, RenameNoReplace(src, dst))

	_, err := os.Stat(src)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "source", string(got))
}

func TestRenameNoReplaceRefusesExistingTarget(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(src, []byte("source"), 0644))
	require.NoError(t, os.WriteFile(dst, []byte("existing"), 0644))

	err := RenameNoReplace(src, dst)
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrExist)

	// Neither side was touched
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "existing", string(got))
	_, err = os.Stat(src)
	assert.NoError(t, err)
}

func TestRenameCheckedRefusesExistingTarget(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(src, []byte("source"), 0644))
	require.NoError(t, os.WriteFile(dst, []byte("existing"), 0644))

	assert.ErrorIs(t, renameChecked(src, dst), fs.ErrExist)

	require.NoError(t, os.Remove(dst))
	assert.NoError(t, renameChecked(src, dst))
}

func TestRenameNoReplaceMissingSource(t *testing.T) {
	dir := t.TempDir()
	err := RenameNoReplace(filepath.Join(dir, "missing"), filepath.Join(dir, "dst"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "history.json")

	require.NoError(t, WriteFileAtomic(path, []byte("[]"), 0600))
	require.NoError(t, WriteFileAtomic(path, []byte("[1]"), 0600))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[1]", string(got))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0600), info.Mode().Perm())

	// No temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
