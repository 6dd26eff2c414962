package watch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"downsort/internal/log"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *log.Logger {
	return log.NewLogger(log.WithOutput(io.Discard))
}

func TestWatcherDeliversCreates(t *testing.T) {
	tempDir := t.TempDir()

	w, err := NewWatcher(quietLogger(), 4)
	require.NoError(t, err)
	require.NoError(t, w.AddDirectory(tempDir))
	require.NoError(t, w.Start())
	defer w.Stop()

	assert.True(t, w.IsRunning())
	assert.Equal(t, []string{tempDir}, w.Directories())

	testFilePath := filepath.Join(tempDir, "testfile.txt")
	require.NoError(t, os.WriteFile(testFilePath, []byte("hello"), 0644))

	select {
	case event, ok := <-w.Events():
		require.True(t, ok, "event queue closed unexpectedly")
		assert.Equal(t, testFilePath, event.Path)
		assert.True(t, event.Op.Has(fsnotify.Create))
		assert.False(t, event.Timestamp.IsZero())
	case <-time.After(3 * time.Second):
		t.Fatal("Timeout waiting for CREATE event")
	}

	// Writes to an existing file are not creations.
	require.NoError(t, os.WriteFile(testFilePath, []byte("hello again"), 0644))
	select {
	case event := <-w.Events():
		t.Fatalf("unexpected event %+v", event)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherAddDirectory(t *testing.T) {
	w, err := NewWatcher(quietLogger(), 0)
	require.NoError(t, err)
	defer w.Stop()

	dir := t.TempDir()
	require.NoError(t, w.AddDirectory(dir))
	require.NoError(t, w.AddDirectory(dir))
	assert.Len(t, w.Directories(), 1, "duplicates are tracked once")

	assert.Error(t, w.AddDirectory(filepath.Join(dir, "missing")))

	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	assert.Error(t, w.AddDirectory(file))
}

func TestWatcherStop(t *testing.T) {
	w, err := NewWatcher(quietLogger(), 1)
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, w.AddDirectory(dir))
	require.NoError(t, w.Start())
	assert.Error(t, w.Start(), "starting twice fails")

	// Fill the queue so the pump blocks on send; Stop must still return.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("f%d.txt", i)), nil, 0644))
	}
	time.Sleep(100 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return")
	}

	assert.False(t, w.IsRunning())
	for range w.Events() {
		// drain until closed
	}
	w.Stop()
	assert.Error(t, w.Start(), "a stopped watcher cannot restart")
}
