package migrate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunRecord is one entry of the run journal.
type RunRecord struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Reset      bool          `json:"reset"`
	Stages     []StageResult `json:"stages"`
	Duplicates int           `json:"duplicates"`
	Error      string        `json:"error,omitempty"`
}

// Succeeded reports whether the run finished without error.
func (r *RunRecord) Succeeded() bool {
	return r.Error == ""
}

// RunStore persists the run journal as a JSON file.
type RunStore struct {
	mu       sync.RWMutex
	filePath string
	runs     map[string]*RunRecord
}

// NewRunStore opens the journal at path.
// If path is empty, defaults to ~/.jobmigrate/runs.json
func NewRunStore(path string) (*RunStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home dir: %w", err)
		}
		path = filepath.Join(home, ".jobmigrate", "runs.json")
	}

	store := &RunStore{
		filePath: path,
		runs:     make(map[string]*RunRecord),
	}

	if err := store.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load runs: %w", err)
	}

	return store, nil
}

// Record appends the outcome of run id, the same ID its progress events were
// published under. An empty id gets a fresh one.
func (s *RunStore) Record(id string, summary *Summary, reset bool, runErr error) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.New().String()
	}
	rec := &RunRecord{
		ID:    id,
		Reset: reset,
	}
	if summary != nil {
		rec.StartedAt = summary.StartedAt
		rec.FinishedAt = summary.FinishedAt
		rec.Stages = summary.Stages
		rec.Duplicates = len(summary.Duplicates)
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}

	s.runs[rec.ID] = rec

	if err := s.persist(); err != nil {
		delete(s.runs, rec.ID)
		return nil, fmt.Errorf("failed to persist run: %w", err)
	}

	return rec, nil
}

// Get retrieves a run by ID.
func (s *RunStore) Get(id string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	return rec, nil
}

// List returns all runs, newest first.
func (s *RunStore) List() []*RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*RunRecord, 0, len(s.runs))
	for _, rec := range s.runs {
		list = append(list, rec)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].StartedAt.After(list[j].StartedAt) })
	return list
}

func (s *RunStore) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var runs map[string]*RunRecord
	if err := json.Unmarshal(data, &runs); err != nil {
		return fmt.Errorf("failed to unmarshal runs: %w", err)
	}
	if runs == nil {
		runs = make(map[string]*RunRecord)
	}

	s.runs = runs
	return nil
}

func (s *RunStore) persist() error {
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(s.runs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal runs: %w", err)
	}

	// Write atomically via temp file
	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpFile, s.filePath); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// FilePath returns the journal file path.
func (s *RunStore) FilePath() string {
	return s.filePath
}
