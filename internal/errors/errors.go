// Package errors provides standardized error handling for downsort.
// It defines the error kinds the organizer, history and watch layers report,
// plus helpers for consistent creation, wrapping and inspection.
package errors

import (
	"errors"
	"fmt"
)

// Standard errors package functions re-exported for convenience
var (
	// Unwrap unwraps an error to access the underlying error
	Unwrap = errors.Unwrap
	// Is reports whether any error in err's chain matches target
	Is = errors.Is
	// As finds the first error in err's chain that matches target
	As = errors.As
)

// ErrorKind represents the kind of error
type ErrorKind int

// Error kinds
const (
	Unknown ErrorKind = iota
	// File error kinds
	FileNotFound
	FileAccessDenied
	InvalidPath
	FileOperationFailed
	ConflictLimit
	// Config error kinds
	InvalidConfig
	ConfigNotFound
	// History error kinds
	HistoryNotFound
	HistoryCorrupt
	HistoryLocked
	// Watch error kinds
	WatchFailed
)

var kindNames = map[ErrorKind]string{
	Unknown:             "unknown",
	FileNotFound:        "file_not_found",
	FileAccessDenied:    "file_access_denied",
	InvalidPath:         "invalid_path",
	FileOperationFailed: "file_operation_failed",
	ConflictLimit:       "conflict_limit",
	InvalidConfig:       "invalid_config",
	ConfigNotFound:      "config_not_found",
	HistoryNotFound:     "history_not_found",
	HistoryCorrupt:      "history_corrupt",
	HistoryLocked:       "history_locked",
	WatchFailed:         "watch_failed",
}

// String returns the snake_case name of the kind.
func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ApplicationError is the base error type for all application errors
type ApplicationError struct {
	msg  string
	err  error
	kind ErrorKind
}

// Error returns the error message
func (e *ApplicationError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

// Unwrap returns the wrapped error
func (e *ApplicationError) Unwrap() error {
	return e.err
}

// Kind returns the kind of error
func (e *ApplicationError) Kind() ErrorKind {
	return e.kind
}

// FileError represents errors related to file operations
type FileError struct {
	ApplicationError
	path string
}

// NewFileError creates a new file error
func NewFileError(msg string, path string, kind ErrorKind, err error) *FileError {
	return &FileError{
		ApplicationError: ApplicationError{msg: msg, err: err, kind: kind},
		path:             path,
	}
}

// Error returns the file error message
func (e *FileError) Error() string {
	if e.path != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.path, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.path)
	}
	return e.ApplicationError.Error()
}

// Path returns the file path associated with the error
func (e *FileError) Path() string {
	return e.path
}

// ConfigError represents errors related to configuration
type ConfigError struct {
	ApplicationError
	param string
}

// NewConfigError creates a new configuration error
func NewConfigError(msg string, param string, kind ErrorKind, err error) *ConfigError {
	return &ConfigError{
		ApplicationError: ApplicationError{msg: msg, err: err, kind: kind},
		param:            param,
	}
}

// Error returns the config error message
func (e *ConfigError) Error() string {
	if e.param != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.param, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.param)
	}
	return e.ApplicationError.Error()
}

// Param returns the configuration parameter associated with the error
func (e *ConfigError) Param() string {
	return e.param
}

// HistoryError represents errors reading, writing or locking a history log.
type HistoryError struct {
	ApplicationError
	path string
}

// NewHistoryError creates a new history error
func NewHistoryError(msg string, path string, kind ErrorKind, err error) *HistoryError {
	return &HistoryError{
		ApplicationError: ApplicationError{msg: msg, err: err, kind: kind},
		path:             path,
	}
}

// Error returns the history error message
func (e *HistoryError) Error() string {
	if e.path != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.path, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.path)
	}
	return e.ApplicationError.Error()
}

// Path returns the history file path associated with the error
func (e *HistoryError) Path() string {
	return e.path
}

// New creates a new error with a message
func New(msg string) error {
	return &ApplicationError{msg: msg, kind: Unknown}
}

// Newf creates a new error with a formatted message
func Newf(format string, args ...interface{}) error {
	return &ApplicationError{msg: fmt.Sprintf(format, args...), kind: Unknown}
}

// NewKind creates a new error of the given kind
func NewKind(kind ErrorKind, msg string, err error) error {
	return &ApplicationError{msg: msg, err: err, kind: kind}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &ApplicationError{msg: msg, err: err, kind: Unknown}
}

// Wrapf wraps an existing error with additional formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &ApplicationError{msg: fmt.Sprintf(format, args...), err: err, kind: Unknown}
}

// KindOf returns the kind of the first classified error in err's chain,
// or Unknown.
func KindOf(err error) ErrorKind {
	for err != nil {
		if k, ok := err.(interface{ Kind() ErrorKind }); ok && k.Kind() != Unknown {
			return k.Kind()
		}
		err = Unwrap(err)
	}
	return Unknown
}

// IsKind reports whether any error in err's chain has the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// IsFileNotFound checks if the error is a file not found error
func IsFileNotFound(err error) bool {
	var fileErr *FileError
	if errors.As(err, &fileErr) {
		return fileErr.Kind() == FileNotFound
	}
	return false
}

// IsFileAccessDenied checks if the error is a file access denied error
func IsFileAccessDenied(err error) bool {
	var fileErr *FileError
	if errors.As(err, &fileErr) {
		return fileErr.Kind() == FileAccessDenied
	}
	return false
}

// IsInvalidConfig checks if the error is an invalid configuration error
func IsInvalidConfig(err error) bool {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr.Kind() == InvalidConfig
	}
	return false
}

// IsHistoryNotFound checks if the error reports a missing history log
func IsHistoryNotFound(err error) bool {
	var histErr *HistoryError
	if errors.As(err, &histErr) {
		return histErr.Kind() == HistoryNotFound
	}
	return false
}

// IsHistoryCorrupt checks if the error reports an unparsable history log
func IsHistoryCorrupt(err error) bool {
	var histErr *HistoryError
	if errors.As(err, &histErr) {
		return histErr.Kind() == HistoryCorrupt
	}
	return false
}
