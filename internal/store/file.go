package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/calmstack/jobkeep/internal/job"
)

// MetadataFile is the name of the flat metadata file inside the data dir.
const MetadataFile = "jobs.json"

// OutputsDir is the subdirectory of the data dir holding per-job log files.
const OutputsDir = "outputs"

// FileStore keeps the job map in a single JSON file: a map of job id to
// record. Every save rewrites the whole file through a temp-file rename so a
// crash mid-write never leaves a truncated map behind.
type FileStore struct {
	path string
}

// NewFileStore creates a store rooted at dataDir, creating the directory and
// its outputs subdirectory as needed.
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dataDir, OutputsDir), 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{path: filepath.Join(dataDir, MetadataFile)}, nil
}

// Path returns the metadata file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) SaveAll(jobs map[string]*job.Record) error {
	b, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal job metadata: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write job metadata: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace job metadata: %w", err)
	}
	return nil
}

func (s *FileStore) LoadAll() (map[string]*job.Record, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]*job.Record), nil
		}
		return nil, fmt.Errorf("read job metadata: %w", err)
	}
	jobs := make(map[string]*job.Record)
	if err := json.Unmarshal(b, &jobs); err != nil {
		return nil, fmt.Errorf("parse job metadata: %w", err)
	}
	for _, rec := range jobs {
		if rec.Status == job.StatusRunning {
			rec.MarkStale()
		}
	}
	return jobs, nil
}
