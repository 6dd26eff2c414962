package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"downsort/internal/config"
	"downsort/internal/errors"
	"downsort/internal/history"
	"downsort/pkg/testutils"
	"downsort/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

type env struct {
	src     string
	dest    string
	history string
	config  string
}

func newEnv(t *testing.T) env {
	t.Helper()
	e := env{
		src:     t.TempDir(),
		dest:    t.TempDir(),
		history: filepath.Join(t.TempDir(), "history.json"),
	}
	e.config = filepath.Join(t.TempDir(), "config.yaml")
	content := fmt.Sprintf(`source: %s
extensions:
  images: [.jpg, .png]
folders:
  images: %s
settings:
  history_file: %s
`, e.src, filepath.Join(e.dest, "Pictures"), e.history)
	require.NoError(t, os.WriteFile(e.config, []byte(content), 0644))
	return e
}

func TestOrganizeAndUndo(t *testing.T) {
	e := newEnv(t)
	testutils.CreateTestFilesWithContent(t, e.src, map[string]string{
		"a.jpg":   "image",
		"b.bin":   "unknown",
		"c/d.png": "nested",
	})
	before := testutils.Snapshot(t, e.src)

	out, err := execute(t, "organize", "--config", e.config)
	require.NoError(t, err)
	assert.Contains(t, out, "Organized "+e.src)
	assert.Contains(t, out, "Moved")
	assert.FileExists(t, filepath.Join(e.dest, "Pictures", "a.jpg"))
	assert.FileExists(t, filepath.Join(e.src, "c", "d.png"), "not recursive by default")
	assert.FileExists(t, e.history)

	out, err = execute(t, "undo", "--config", e.config)
	require.NoError(t, err)
	assert.Contains(t, out, "Restored")
	assert.Equal(t, before, testutils.Snapshot(t, e.src))

	_, err = execute(t, "undo", "--config", e.config)
	require.Error(t, err)
	assert.True(t, errors.IsHistoryNotFound(err))
}

func TestOrganizeRecursiveWithExplicitDirectory(t *testing.T) {
	e := newEnv(t)
	other := t.TempDir()
	testutils.CreateTestFilesWithContent(t, other, map[string]string{"deep/x.jpg": "image"})

	_, err := execute(t, "organize", other, "--recursive", "--config", e.config)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(e.dest, "Pictures", "x.jpg"))
}

func TestOrganizeDryRun(t *testing.T) {
	e := newEnv(t)
	testutils.CreateTestFilesWithContent(t, e.src, map[string]string{"a.jpg": "image"})

	out, err := execute(t, "organize", "--dry-run", "--config", e.config)
	require.NoError(t, err)
	assert.Contains(t, out, "Dry run for "+e.src)
	assert.FileExists(t, filepath.Join(e.src, "a.jpg"))
	assert.NoFileExists(t, e.history)
}

func TestOrganizeMissingSourceFails(t *testing.T) {
	e := newEnv(t)
	_, err := execute(t, "organize", filepath.Join(e.src, "missing"), "--config", e.config)
	require.Error(t, err)
	assert.True(t, errors.IsFileNotFound(err))
}

func TestExplicitConfigMustExist(t *testing.T) {
	_, err := execute(t, "organize", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.ConfigNotFound))
}

func TestInvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("extensions:\n  images: [.jpg]\n"), 0644))

	_, err := execute(t, "organize", t.TempDir(), "--config", path)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidConfig(err))
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "downsort", "config.yaml")

	out, err := execute(t, "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg, err := config.LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Categories, cfg.Categories)

	_, err = execute(t, "init", "--config", path)
	assert.Error(t, err, "existing config is kept")

	_, err = execute(t, "init", "--force", "--config", path)
	assert.NoError(t, err)
}

func TestHistoryPathPrecedence(t *testing.T) {
	cfg := &config.Config{Settings: config.Settings{HistoryFile: "/state/h.json"}}
	assert.Equal(t, "/flag/h.json", historyPath(cfg, "/flag/h.json"))
	assert.Equal(t, "/state/h.json", historyPath(cfg, ""))
	assert.Equal(t, config.DefaultHistoryPath(), historyPath(&config.Config{}, ""))
}

func TestSourceDir(t *testing.T) {
	cfg := &config.Config{Source: "/data/Downloads"}

	dir, err := sourceDir(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "/data/Downloads", dir)

	dir, err = sourceDir(cfg, []string{"/elsewhere"})
	require.NoError(t, err)
	assert.Equal(t, "/elsewhere", dir)

	_, err = sourceDir(&config.Config{}, nil)
	assert.True(t, errors.IsInvalidConfig(err))
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	out := renderSummary(&buf, "Organized /tmp", runRows(types.RunStats{Scanned: 3, Moved: 2, Unsupported: 1}))

	assert.Contains(t, out, "Organized /tmp")
	assert.Contains(t, out, "Unsupported")
	assert.Contains(t, out, "+", "non-terminal output uses ASCII borders")
	assert.NotContains(t, out, "╭")
}

func TestOrganizeRefusesLockedHistoryBeforeMoving(t *testing.T) {
	e := newEnv(t)
	testutils.CreateTestFilesWithContent(t, e.src, map[string]string{"a.jpg": "image"})
	before := testutils.Snapshot(t, e.src)

	held, err := history.Acquire(e.history)
	require.NoError(t, err)
	defer held.Release()

	_, err = execute(t, "organize", "--config", e.config)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.HistoryLocked))
	assert.Equal(t, before, testutils.Snapshot(t, e.src), "no file moves while the history is locked")
	assert.NoDirExists(t, filepath.Join(e.dest, "Pictures"))
	assert.NoFileExists(t, e.history)
}
