// Package testutils holds filesystem fixtures shared by the package tests.
package testutils

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// CreateTestFilesWithContent creates files (and their parent folders) under
// dir. Keys are slash-separated paths relative to dir.
func CreateTestFilesWithContent(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

// CreateTestFilesWithDefault creates a small mixed set of files.
func CreateTestFilesWithDefault(t *testing.T, dir string) {
	CreateTestFilesWithContent(t, dir, map[string]string{
		"test1.txt": "test content 1",
		"test2.txt": "test content 2",
		"test3.jpg": "image content",
	})
}

// Snapshot maps every regular file below root (slash-separated, relative to
// root) to its content. Directories appear with an empty-string value and a
// trailing slash.
func Snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			out[rel+"/"] = ""
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[rel] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

// ReadFile returns the content of path or fails the test.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
