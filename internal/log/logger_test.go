package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"downsort/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicLogging(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf))

	l.Info("info message")
	assert.Contains(t, buf.String(), "level=info")
	assert.Contains(t, buf.String(), "info message")
	buf.Reset()

	l.Warn("warn message")
	assert.Contains(t, buf.String(), "level=warning")
	assert.Contains(t, buf.String(), "warn message")
	buf.Reset()

	l.Error("error message")
	assert.Contains(t, buf.String(), "level=error")
	buf.Reset()

	l.Infof("formatted %s", "message")
	assert.Contains(t, buf.String(), "formatted message")
}

func TestDebugLogging(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf))

	SetDebug(false)
	l.Debug("debug message")
	assert.Empty(t, buf.String())

	SetDebug(true)
	defer SetDebug(false)
	l.Debug("debug message")
	assert.Contains(t, buf.String(), "level=debug")
	assert.Contains(t, buf.String(), "debug message")
	buf.Reset()

	l.Debugf("formatted %s", "debug")
	assert.Contains(t, buf.String(), "formatted debug")
}

func TestLevelOption(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf), WithLevel("warn"))

	l.Info("hidden")
	assert.Empty(t, buf.String())
	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestStructuredLogging(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf))

	l.With(F("key1", "value1"), F("key2", 123)).Info("structured message")
	output := buf.String()
	assert.Contains(t, output, "structured message")
	assert.Contains(t, output, "key1=value1")
	assert.Contains(t, output, "key2=123")
	buf.Reset()

	// Chained fields accumulate without leaking into the parent
	child := l.With(F("key1", "value1"))
	child.With(F("key2", 123)).Info("chained fields")
	output = buf.String()
	assert.Contains(t, output, "key1=value1")
	assert.Contains(t, output, "key2=123")
	buf.Reset()

	child.Info("parent only")
	assert.NotContains(t, buf.String(), "key2=123")
}

func TestJSONLogging(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf), WithJSON())

	l.Info("json message")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))

	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "json message", entry["message"])
	assert.Contains(t, entry, "timestamp")
	assert.Contains(t, entry, "caller")
	buf.Reset()

	l.With(F("key1", "value1"), F("key2", 123)).Info("structured json")
	entry = map[string]interface{}{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "value1", entry["key1"])
	assert.Equal(t, float64(123), entry["key2"])
}

func TestErrorLogging(t *testing.T) {
	var buf bytes.Buffer
	originalLogger := logger
	Configure(WithOutput(&buf))
	defer func() { logger = originalLogger }()

	LogWithFields(F("error", fmt.Errorf("standard error").Error())).Error("error occurred")
	output := buf.String()
	assert.Contains(t, output, "error occurred")
	assert.Contains(t, output, "standard error")
	buf.Reset()

	LogWithError(errors.New("application error")).Error("app error occurred")
	output = buf.String()
	assert.Contains(t, output, "application error")
	assert.Contains(t, output, "error_kind=0")
	buf.Reset()

	fileErr := errors.NewFileError("file error", "/path/to/file", errors.FileNotFound, nil)
	LogWithError(fileErr).Error("file error occurred")
	output = buf.String()
	assert.Contains(t, output, "file error: /path/to/file")
	assert.Contains(t, output, "path=/path/to/file")
	assert.Contains(t, output, fmt.Sprintf("error_kind=%d", int(errors.FileNotFound)))
	buf.Reset()

	configErr := errors.NewConfigError("config error", "folders", errors.InvalidConfig, nil)
	LogWithError(configErr).Error("config error occurred")
	output = buf.String()
	assert.Contains(t, output, "param=folders")
	assert.Contains(t, output, fmt.Sprintf("error_kind=%d", int(errors.InvalidConfig)))
	buf.Reset()

	histErr := errors.NewHistoryError("history not found", "/state/history.json", errors.HistoryNotFound, nil)
	LogWithError(histErr).Error("undo failed")
	output = buf.String()
	assert.Contains(t, output, "path=/state/history.json")
	buf.Reset()

	LogError(fileErr, "convenient error log")
	output = buf.String()
	assert.Contains(t, output, "convenient error log")
	assert.Contains(t, output, "file error: /path/to/file")
}

func TestCallerInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf))

	l.Info("caller test")
	assert.Contains(t, buf.String(), "logger_test.go:")
	buf.Reset()

	l.With(F("k", "v")).Warnf("caller %s", "formatted")
	assert.Contains(t, buf.String(), "logger_test.go:")
}

func TestFileOutput(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "logtest*.log")
	require.NoError(t, err)
	tmpFile.Close()
	defer os.Remove(tmpFile.Name())

	originalStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	originalLogger := logger
	Configure(WithFile(tmpFile.Name()))

	defer func() {
		os.Stdout = originalStdout
		logger.Close()
		logger = originalLogger
	}()

	Info("file test message")
	w.Close()

	var stdoutBuf bytes.Buffer
	io.Copy(&stdoutBuf, r)
	assert.Contains(t, stdoutBuf.String(), "file test message")

	fileContent, err := os.ReadFile(tmpFile.Name())
	require.NoError(t, err)
	assert.Contains(t, string(fileContent), "file test message")
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf))

	l.WithContext(nil).Info("context message")
	assert.Contains(t, buf.String(), "context message")
}

func TestNestedErrors(t *testing.T) {
	var buf bytes.Buffer
	originalLogger := logger
	Configure(WithOutput(&buf))
	defer func() { logger = originalLogger }()

	baseErr := fmt.Errorf("base error")
	fileErr := errors.NewFileError("file error", "/path/file", errors.FileNotFound, baseErr)
	configErr := errors.NewConfigError("config error", "setting", errors.InvalidConfig, fileErr)

	LogWithError(configErr).Error("nested error occurred")
	output := buf.String()
	assert.Contains(t, output, "config error: setting: file error: /path/file: base error")
	assert.Contains(t, output, fmt.Sprintf("error_kind=%d", int(errors.InvalidConfig)))
	assert.Contains(t, output, "param=setting")
	assert.Contains(t, output, "path=/path/file")
}

func TestConfigure(t *testing.T) {
	originalLogger := logger
	defer func() { logger = originalLogger }()

	var buf bytes.Buffer
	Configure(WithOutput(&buf), WithJSON())
	Info("global config test")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "global config test", entry["message"])
	assert.Same(t, logger, Default())
}

func TestNilErrorHandling(t *testing.T) {
	var buf bytes.Buffer
	originalLogger := logger
	Configure(WithOutput(&buf))
	defer func() { logger = originalLogger }()

	LogWithError(nil).Error("nil error test")
	output := buf.String()
	assert.Contains(t, output, "nil error test")
	assert.Contains(t, output, `error="<nil>"`)
}
