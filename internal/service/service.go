package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/calmstack/jobkeep/internal/history"
	"github.com/calmstack/jobkeep/internal/job"
	"github.com/calmstack/jobkeep/internal/store"
)

// Service launches, inspects, and terminates tracked background jobs.
//
// A single coarse lock guards the job map and gates the metadata rewrite, so
// mutation is fully serialized across jobs. Per-job log files need no
// cross-job locking: each is written by exactly one monitor goroutine.
type Service struct {
	mu      sync.Mutex
	jobs    map[string]*job.Record
	handles map[string]*handle

	st     store.Store
	outDir string
	sinks  []history.Sink
}

// handle is the live side of a running job. done is closed by the monitor
// only after the terminal status and exit code have been persisted.
type handle struct {
	pid  int
	done chan struct{}
}

// New creates a Service rooted at dataDir and reloads persisted jobs. A load
// failure is logged and startup continues with an empty map; in-memory state
// is authoritative from then on.
func New(dataDir string) (*Service, error) {
	st, err := store.NewFileStore(dataDir)
	if err != nil {
		return nil, err
	}
	s := &Service{
		handles: make(map[string]*handle),
		st:      st,
		outDir:  filepath.Join(dataDir, store.OutputsDir),
	}
	jobs, err := st.LoadAll()
	if err != nil {
		slog.Warn("failed to load job metadata, starting empty", "error", err)
		jobs = make(map[string]*job.Record)
	}
	s.jobs = jobs
	return s, nil
}

// SetHistorySinks configures external audit sinks. Passing none clears the
// list.
func (s *Service) SetHistorySinks(sinks ...history.Sink) {
	s.mu.Lock()
	s.sinks = append([]history.Sink(nil), sinks...)
	s.mu.Unlock()
}

// Close closes the configured history sinks. Running jobs are left alone: a
// restart reclassifies them as stale on reload.
func (s *Service) Close() error {
	s.mu.Lock()
	sinks := s.sinks
	s.sinks = nil
	s.mu.Unlock()
	var firstErr error
	for _, snk := range sinks {
		if err := snk.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// logPath returns the deterministic output path for a job id.
func (s *Service) logPath(id string) string {
	return filepath.Join(s.outDir, id+".log")
}

// persistLocked rewrites the metadata file from the in-memory map. Must be
// called with s.mu held. Failures are logged and swallowed; the in-memory
// state remains authoritative until the next successful save.
func (s *Service) persistLocked() {
	if err := s.st.SaveAll(s.jobs); err != nil {
		slog.Warn("failed to persist job metadata", "error", err)
	}
}

// record emits a history event to all configured sinks. Failures are logged,
// never fatal. Must not be called with s.mu held.
func (s *Service) record(e history.Event) {
	s.mu.Lock()
	sinks := append([]history.Sink(nil), s.sinks...)
	s.mu.Unlock()
	if len(sinks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, snk := range sinks {
		if err := snk.Send(ctx, e); err != nil {
			slog.Warn("history sink send failed", "job", e.JobID, "event", e.Type, "error", err)
		}
	}
}

func (s *Service) event(t history.EventType, rec *job.Record) history.Event {
	e := history.Event{
		Type:          t,
		OccurredAt:    time.Now().UTC(),
		JobID:         rec.ID,
		Status:        string(rec.Status),
		ExitCode:      rec.ExitCode,
		TrackingLabel: rec.TrackingLabel,
	}
	if rec.PID != nil {
		e.PID = *rec.PID
	}
	return e
}

// removeLogFile best-effort.
func (s *Service) removeLogFile(rec *job.Record) {
	if rec.OutputLogPath == "" {
		return
	}
	if err := os.Remove(rec.OutputLogPath); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove job log file", "job", rec.ID, "error", err)
	}
}

// uniqueIDLocked generates an id and disambiguates collisions against the
// current map. Must be called with s.mu held.
func (s *Service) uniqueIDLocked(label string, command []string) string {
	id := job.NewID(label, command, time.Now())
	if _, exists := s.jobs[id]; !exists {
		return id
	}
	for i := 2; ; i++ {
		cand := fmt.Sprintf("%s-%d", id, i)
		if _, exists := s.jobs[cand]; !exists {
			return cand
		}
	}
}
