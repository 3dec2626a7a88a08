package job

import (
	"strings"
	"time"
)

// Record describes one tracked background process. It is a plain data entity;
// all concurrent access is serialized by the owning service's lock.
// JSON field names are part of the on-disk metadata format and must not change.
type Record struct {
	ID            string    `json:"id"`
	Command       []string  `json:"command_list"`
	CommandStr    string    `json:"command_str"`
	Status        Status    `json:"status"`
	PID           *int      `json:"pid"`
	ExitCode      *int      `json:"exit_code"`
	OutputLogPath string    `json:"output_file_path"`
	TrackingLabel string    `json:"tracking_label,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// New builds a pending record for the given argv.
func New(id string, command []string, trackingLabel, outputLogPath string) *Record {
	now := time.Now().UTC()
	return &Record{
		ID:            id,
		Command:       append([]string(nil), command...),
		CommandStr:    strings.Join(command, " "),
		Status:        StatusPending,
		OutputLogPath: outputLogPath,
		TrackingLabel: trackingLabel,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Clone returns a copy safe to hand to callers.
func (r *Record) Clone() *Record {
	cp := *r
	cp.Command = append([]string(nil), r.Command...)
	if r.PID != nil {
		pid := *r.PID
		cp.PID = &pid
	}
	if r.ExitCode != nil {
		code := *r.ExitCode
		cp.ExitCode = &code
	}
	return &cp
}

// touch advances UpdatedAt, keeping it monotonically non-decreasing even when
// the wall clock steps backwards.
func (r *Record) touch() {
	now := time.Now().UTC()
	if now.Before(r.UpdatedAt) {
		now = r.UpdatedAt
	}
	r.UpdatedAt = now
}

// MarkRunning transitions the record to RUNNING with the spawned PID.
func (r *Record) MarkRunning(pid int) error {
	if err := r.transition(StatusRunning); err != nil {
		return err
	}
	r.PID = &pid
	r.touch()
	return nil
}

// MarkExited records a terminal state derived from the process exit code:
// COMPLETED for zero, FAILED otherwise. The PID is cleared exactly here so
// that "pid set" and "terminal" are mutually exclusive.
func (r *Record) MarkExited(exitCode int) error {
	st := StatusCompleted
	if exitCode != 0 {
		st = StatusFailed
	}
	return r.markTerminal(st, exitCode)
}

// MarkFailed force-fails the record with the given exit code. Used for spawn
// failures and monitor errors.
func (r *Record) MarkFailed(exitCode int) error {
	return r.markTerminal(StatusFailed, exitCode)
}

// MarkTerminated records an explicit kill. Unlike the other terminal marks it
// may overwrite a terminal state the monitor reached while the kill escalation
// was in flight; the explicit stop wins for the audit trail.
func (r *Record) MarkTerminated(exitCode int) {
	r.Status = StatusTerminated
	r.ExitCode = &exitCode
	r.PID = nil
	r.touch()
}

// MarkTerminationFailed records a kill attempt that itself errored.
func (r *Record) MarkTerminationFailed() {
	code := ExitCodeUnknown
	r.Status = StatusFailedTermination
	r.ExitCode = &code
	r.PID = nil
	r.touch()
}

// MarkStale reclassifies a RUNNING record whose process handle cannot be
// recovered (load after restart).
func (r *Record) MarkStale() {
	code := ExitCodeUnknown
	r.Status = StatusUnknownStale
	r.ExitCode = &code
	r.PID = nil
	r.touch()
}

func (r *Record) markTerminal(st Status, exitCode int) error {
	if err := r.transition(st); err != nil {
		return err
	}
	r.ExitCode = &exitCode
	r.PID = nil
	r.touch()
	return nil
}

func (r *Record) transition(next Status) error {
	if !r.Status.CanTransitionTo(next) {
		return &InvalidTransitionError{From: r.Status, To: next}
	}
	r.Status = next
	return nil
}
