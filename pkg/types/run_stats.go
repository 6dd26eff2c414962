package types

// RunStats counts what one organize, watch or undo run did. Dry runs count
// would-be moves as Moved.
type RunStats struct {
	Scanned     int `json:"scanned"`
	Moved       int `json:"moved"`
	Skipped     int `json:"skipped"`
	Unsupported int `json:"unsupported"`
	Errors      int `json:"errors"`
}

// Record bumps the counter matching o.
func (s *RunStats) Record(o Outcome) {
	switch o {
	case OutcomeMoved:
		s.Moved++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeUnsupported:
		s.Unsupported++
	case OutcomeFailed:
		s.Errors++
	}
}
