// Package history records the moves of a run and replays them backwards.
//
// A run appends one Record per successful move to an in-memory Store. When
// the run ends the Store is written as a JSON array, oldest first, replacing
// whatever log was there before. Undo reads that file, restores every move
// newest first and deletes the file.
package history

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"downsort/internal/errors"
	"downsort/internal/fsutil"
)

// Record is one completed move.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	From      string    `json:"from"`
	To        string    `json:"to"`
}

// NewRecord stamps a move with the current time.
func NewRecord(from, to string) Record {
	return Record{Timestamp: time.Now().UTC(), From: from, To: to}
}

// Store is an append-only list of records, safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	records []Record
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Append adds r at the end.
func (s *Store) Append(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
}

// Records returns a copy of the records, oldest first.
func (s *Store) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Save atomically writes the records to path, replacing any previous log.
// Callers coordinating with other processes hold the Lock for path.
func (s *Store) Save(path string) error {
	records := s.Records()
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.NewHistoryError("cannot encode history", path, errors.FileOperationFailed, err)
	}
	if err := fsutil.WriteFileAtomic(path, append(data, '\n'), 0644); err != nil {
		return errors.NewHistoryError("cannot write history", path, errors.FileOperationFailed, err)
	}
	return nil
}

// Load reads a persisted history log. A missing file is HistoryNotFound;
// anything that is not a well-formed record array is HistoryCorrupt.
func Load(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewHistoryError("history not found", path, errors.HistoryNotFound, err)
		}
		return nil, errors.NewHistoryError("cannot read history", path, errors.FileOperationFailed, err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.NewHistoryError("cannot parse history", path, errors.HistoryCorrupt, err)
	}
	for i, r := range records {
		if r.From == "" || r.To == "" {
			return nil, errors.NewHistoryError("history record is missing a path", path, errors.HistoryCorrupt,
				errors.Newf("record %d", i))
		}
	}
	return records, nil
}
