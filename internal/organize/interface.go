package organize

import (
	"downsort/internal/history"
	"downsort/pkg/types"
)

// Organizer defines the interface for file organization operations
// This allows for dependency injection in tests and other parts of the application
type Organizer interface {
	// Organize sorts a whole source directory
	Organize(dir string) (types.RunStats, error)

	// Sweep sorts the entries of dir for a run rooted at root
	Sweep(root, dir string) error

	// MoveFile sorts a single file
	MoveFile(root, path string) types.OrganizeResult

	// IsDestination reports whether path is a category folder under root
	IsDestination(root, path string) bool

	// Stats returns the run counters
	Stats() types.RunStats

	// History returns the moves made so far
	History() *history.Store

	// DryRun reports whether moves are only simulated
	DryRun() bool

	// Recursive reports whether subdirectories are descended
	Recursive() bool

	// RunID identifies the run in log entries
	RunID() string

	// Persist writes the history log at the end of a run
	Persist(path string) error
}

// Ensure Engine implements the Organizer interface
var _ Organizer = (*Engine)(nil)
