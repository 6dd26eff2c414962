package types

// Outcome classifies what happened to a single file.
type Outcome int

const (
	OutcomeMoved Outcome = iota
	OutcomeSkipped
	OutcomeUnsupported
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMoved:
		return "moved"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeUnsupported:
		return "unsupported"
	case OutcomeFailed:
		return "error"
	default:
		return "unknown"
	}
}

// OrganizeResult holds the outcome of an organization attempt for a single file
type OrganizeResult struct {
	SourcePath      string  `json:"source_path"`
	DestinationPath string  `json:"destination_path,omitempty"`
	Category        string  `json:"category,omitempty"`
	Outcome         Outcome `json:"outcome"`
	DryRun          bool    `json:"dry_run,omitempty"`
	Error           error   `json:"-"`
}
