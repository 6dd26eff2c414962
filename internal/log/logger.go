// Package log is downsort's structured logger. It wraps logrus with a small
// field API so every package logs the same way, and so the organizer can be
// handed a logger instead of reaching for a global.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"downsort/internal/errors"

	"github.com/sirupsen/logrus"
)

var (
	isDebug = false
	logger  = NewLogger()
)

// Field is a single key/value attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// F builds a Field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Logger writes structured entries through logrus.
type Logger struct {
	base   *logrus.Logger
	fields logrus.Fields
	file   *os.File
}

// Option configures a Logger.
type Option func(*Logger)

// WithOutput sends entries to w.
func WithOutput(w io.Writer) Option {
	return func(l *Logger) {
		l.base.SetOutput(w)
	}
}

// WithJSON switches to one JSON object per line.
func WithJSON() Option {
	return func(l *Logger) {
		l.base.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyMsg:   "message",
				logrus.FieldKeyLevel: "level",
			},
		})
	}
}

// WithFile tees entries into the file at path, appending.
func WithFile(path string) Option {
	return func(l *Logger) {
		if dir := filepath.Dir(path); dir != "" {
			_ = os.MkdirAll(dir, 0755)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			l.base.WithField("error", err.Error()).Warn("cannot open log file, logging to console only")
			return
		}
		l.file = f
		l.base.SetOutput(io.MultiWriter(l.base.Out, f))
	}
}

// WithLevel sets the minimum level ("debug", "info", "warn", "error").
func WithLevel(level string) Option {
	return func(l *Logger) {
		if lvl, err := logrus.ParseLevel(level); err == nil {
			l.base.SetLevel(lvl)
		}
	}
}

// NewLogger creates a logger writing text entries to stdout.
func NewLogger(opts ...Option) *Logger {
	base := logrus.New()
	base.SetOutput(os.Stdout)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	// Debug gating happens in Debug/Debugf so SetDebug applies to every logger.
	base.SetLevel(logrus.DebugLevel)

	l := &Logger{base: base, fields: logrus.Fields{}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Configure replaces the package-level logger.
func Configure(opts ...Option) {
	logger = NewLogger(opts...)
}

// Default returns the package-level logger.
func Default() *Logger {
	return logger
}

// SetDebug toggles debug output for every logger.
func SetDebug(debug bool) {
	isDebug = debug
}

// Close releases the log file opened by WithFile, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// With returns a child logger carrying the given fields.
func (l *Logger) With(fields ...Field) *Logger {
	merged := make(logrus.Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for _, f := range fields {
		merged[f.Key] = f.Value
	}
	return &Logger{base: l.base, fields: merged, file: l.file}
}

// WithError returns a child logger describing err.
func (l *Logger) WithError(err error) *Logger {
	return l.With(errorFields(err)...)
}

// WithContext is reserved for request-scoped values; it currently returns l.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	return l
}

func (l *Logger) Info(msg string)  { l.log(logrus.InfoLevel, msg) }
func (l *Logger) Warn(msg string)  { l.log(logrus.WarnLevel, msg) }
func (l *Logger) Error(msg string) { l.log(logrus.ErrorLevel, msg) }

func (l *Logger) Debug(msg string) {
	if isDebug {
		l.log(logrus.DebugLevel, msg)
	}
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(logrus.InfoLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(logrus.WarnLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(logrus.ErrorLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if isDebug {
		l.log(logrus.DebugLevel, fmt.Sprintf(format, args...))
	}
}

// log must be called directly from an exported method so the caller frame
// sits two levels up.
func (l *Logger) log(level logrus.Level, msg string) {
	entry := l.base.WithFields(l.fields)
	if _, file, line, ok := runtime.Caller(2); ok {
		entry = entry.WithField("caller", fmt.Sprintf("%s:%d", filepath.Base(file), line))
	}
	entry.Log(level, msg)
}

func errorFields(err error) []Field {
	if err == nil {
		return []Field{F("error", "<nil>")}
	}
	fields := []Field{
		F("error", err.Error()),
		F("error_kind", int(errors.KindOf(err))),
	}
	var fileErr *errors.FileError
	if errors.As(err, &fileErr) && fileErr.Path() != "" {
		fields = append(fields, F("path", fileErr.Path()))
	}
	var histErr *errors.HistoryError
	if errors.As(err, &histErr) && histErr.Path() != "" {
		fields = append(fields, F("path", histErr.Path()))
	}
	var configErr *errors.ConfigError
	if errors.As(err, &configErr) && configErr.Param() != "" {
		fields = append(fields, F("param", configErr.Param()))
	}
	return fields
}

// Package-level helpers log through the configured default logger.

func Info(msg string)  { logger.log(logrus.InfoLevel, msg) }
func Warn(msg string)  { logger.log(logrus.WarnLevel, msg) }
func Error(msg string) { logger.log(logrus.ErrorLevel, msg) }

func Debug(msg string) {
	if isDebug {
		logger.log(logrus.DebugLevel, msg)
	}
}

func Infof(format string, args ...interface{}) {
	logger.log(logrus.InfoLevel, fmt.Sprintf(format, args...))
}

func Warnf(format string, args ...interface{}) {
	logger.log(logrus.WarnLevel, fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...interface{}) {
	logger.log(logrus.ErrorLevel, fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...interface{}) {
	if isDebug {
		logger.log(logrus.DebugLevel, fmt.Sprintf(format, args...))
	}
}

// LogWithFields returns the default logger with fields attached.
func LogWithFields(fields ...Field) *Logger {
	return logger.With(fields...)
}

// LogWithError returns the default logger describing err.
func LogWithError(err error) *Logger {
	return logger.WithError(err)
}

// LogError logs err with msg at error level.
func LogError(err error, msg string) {
	l := logger.WithError(err)
	l.log(logrus.ErrorLevel, msg)
}
