package service

import (
	"log/slog"
	"sort"
	"syscall"
	"time"

	"github.com/calmstack/jobkeep/internal/history"
	"github.com/calmstack/jobkeep/internal/job"
	"github.com/calmstack/jobkeep/internal/metrics"
)

const (
	// gracefulWait is how long Terminate waits after SIGTERM before
	// escalating.
	gracefulWait = 2 * time.Second
	// killWait is the additional wait after SIGKILL.
	killWait = 1 * time.Second
)

// Terminate stops a job. It never returns an error; the outcome is encoded in
// the result. Unknown ids and already-terminal jobs cause no side effects. A
// live job gets SIGTERM to its process group, up to gracefulWait to exit,
// then SIGKILL with up to killWait more. The call blocks the caller for up to
// roughly the sum of both waits.
func (s *Service) Terminate(id string) job.TerminateResult {
	s.mu.Lock()
	rec, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return job.TerminateNotFound
	}
	if rec.Status.Terminal() {
		s.mu.Unlock()
		return job.TerminateAlreadyStopped
	}
	h := s.handles[id]
	if h == nil {
		// Non-terminal but no live process: it cannot truly be killed, only
		// marked.
		rec.MarkTerminated(job.ExitCodeUnknown)
		s.persistLocked()
		snapshot := rec.Clone()
		s.mu.Unlock()
		metrics.IncOutcome(string(job.StatusTerminated))
		s.record(s.event(history.EventTerminate, snapshot))
		slog.Warn("job had no live handle, marked terminated", "job", id)
		return job.TerminateDone
	}
	pid := h.pid
	done := h.done
	s.mu.Unlock()

	forceKilled, err := s.stopProcess(pid, done)
	if err != nil {
		s.mu.Lock()
		rec.MarkTerminationFailed()
		s.persistLocked()
		snapshot := rec.Clone()
		s.mu.Unlock()
		metrics.IncOutcome(string(job.StatusFailedTermination))
		s.record(s.event(history.EventTerminate, snapshot))
		slog.Error("failed to terminate job", "job", id, "pid", pid, "error", err)
		return job.TerminateError
	}

	s.mu.Lock()
	// Best-effort exit code: prefer what the monitor observed; fall back to
	// the kill-signal sentinel when we had to force-kill.
	code := job.ExitCodeUnknown
	if rec.ExitCode != nil {
		code = *rec.ExitCode
	} else if forceKilled {
		code = -int(syscall.SIGKILL)
	}
	rec.MarkTerminated(code)
	s.persistLocked()
	snapshot := rec.Clone()
	s.mu.Unlock()

	metrics.IncOutcome(string(job.StatusTerminated))
	s.record(s.event(history.EventTerminate, snapshot))
	slog.Info("job terminated", "job", id, "pid", pid, "force_killed", forceKilled)
	return job.TerminateDone
}

// stopProcess signals the process group and waits on the monitor's done
// channel, escalating once. ESRCH means the process is already gone; the
// monitor will reap it, so just wait.
func (s *Service) stopProcess(pid int, done <-chan struct{}) (forceKilled bool, err error) {
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && err != syscall.ESRCH {
		return false, err
	}
	select {
	case <-done:
		return false, nil
	case <-time.After(gracefulWait):
	}
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		return true, err
	}
	select {
	case <-done:
	case <-time.After(killWait):
		// Monitor has not reaped it yet; mark anyway, best-effort.
	}
	return true, nil
}

// PruneCompleted removes every terminal job, deletes its log file, persists
// the reduced map, and returns the removed ids sorted.
func (s *Service) PruneCompleted() []string {
	s.mu.Lock()
	removed := make([]*job.Record, 0)
	for id, rec := range s.jobs {
		if rec.Status.Terminal() {
			removed = append(removed, rec)
			delete(s.jobs, id)
		}
	}
	if len(removed) > 0 {
		s.persistLocked()
	}
	s.mu.Unlock()

	ids := make([]string, 0, len(removed))
	for _, rec := range removed {
		s.removeLogFile(rec)
		ids = append(ids, rec.ID)
		s.record(s.event(history.EventPrune, rec))
	}
	sort.Strings(ids)
	if len(ids) > 0 {
		metrics.AddPruned(len(ids))
		slog.Info("pruned terminal jobs", "count", len(ids))
	}
	return ids
}
