package service

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/calmstack/jobkeep/internal/history"
	"github.com/calmstack/jobkeep/internal/job"
	"github.com/calmstack/jobkeep/internal/metrics"
)

// Launch spawns command as a tracked background job and returns its id
// without waiting for completion.
//
// On spawn failure the job is still recorded as FAILED with the sentinel exit
// code before the underlying OS error is returned, so the audit trail
// reflects the attempt.
func (s *Service) Launch(command []string, trackingLabel string) (string, error) {
	if len(command) == 0 {
		return "", job.ErrEmptyCommand
	}

	s.mu.Lock()
	id := s.uniqueIDLocked(trackingLabel, command)
	rec := job.New(id, command, trackingLabel, s.logPath(id))
	s.jobs[id] = rec
	s.mu.Unlock()

	// Combined stdout/stderr through one pipe; the monitor drains the read
	// end line by line.
	pr, pw, err := os.Pipe()
	if err != nil {
		s.failLaunch(rec, err)
		return "", fmt.Errorf("create output pipe: %w", err)
	}

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Stdout = pw
	cmd.Stderr = pw
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		_ = pr.Close()
		s.failLaunch(rec, err)
		return "", fmt.Errorf("spawn %q: %w", rec.CommandStr, err)
	}
	// The child holds its own copy of the write end.
	_ = pw.Close()

	pid := cmd.Process.Pid
	h := &handle{pid: pid, done: make(chan struct{})}

	s.mu.Lock()
	if err := rec.MarkRunning(pid); err != nil {
		// Unreachable for a fresh PENDING record; keep the audit honest anyway.
		slog.Error("launch state error", "job", id, "error", err)
	}
	s.handles[id] = h
	s.persistLocked()
	s.mu.Unlock()

	metrics.IncLaunch()
	metrics.IncActive()
	s.record(s.event(history.EventLaunch, rec.Clone()))

	go s.monitor(id, cmd, pr, h.done)

	slog.Info("job launched", "job", id, "pid", pid, "command", rec.CommandStr)
	return id, nil
}

// failLaunch records a spawn failure so the caller's error has a matching
// FAILED entry in the store.
func (s *Service) failLaunch(rec *job.Record, cause error) {
	s.mu.Lock()
	if err := rec.MarkFailed(job.ExitCodeUnknown); err != nil {
		slog.Error("launch state error", "job", rec.ID, "error", err)
	}
	s.persistLocked()
	s.mu.Unlock()
	metrics.IncOutcome(string(job.StatusFailed))
	s.record(s.event(history.EventExit, rec.Clone()))
	slog.Warn("job failed to spawn", "job", rec.ID, "command", rec.CommandStr, "error", cause)
}

// monitor owns exclusive write access to the job's log file. It drains the
// process output line by line, writing each line through immediately so
// memory stays bounded, waits for exit, then publishes the terminal state.
// Errors here have no caller to surface to; they mark the job FAILED and are
// observable only via later status queries.
func (s *Service) monitor(id string, cmd *exec.Cmd, out *os.File, done chan struct{}) {
	defer close(done)
	defer metrics.DecActive()

	monErr := s.drainOutput(id, out)
	_ = out.Close()

	waitErr := cmd.Wait()
	exitCode := job.ExitCodeUnknown
	if ps := cmd.ProcessState; ps != nil {
		exitCode = ps.ExitCode()
		if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			// Mirror the kill-signal sentinel convention: -N for signal N.
			exitCode = -int(ws.Signal())
		}
	} else if waitErr != nil && monErr == nil {
		monErr = waitErr
	}

	s.mu.Lock()
	rec, ok := s.jobs[id]
	if !ok {
		// Pruned while running is impossible (prune skips non-terminal jobs),
		// but never crash the monitor over a missing record.
		s.mu.Unlock()
		slog.Error("monitor finished for unknown job", "job", id)
		return
	}
	var markErr error
	if monErr != nil {
		markErr = rec.MarkFailed(job.ExitCodeUnknown)
	} else {
		markErr = rec.MarkExited(exitCode)
	}
	if markErr != nil {
		slog.Warn("monitor could not record terminal state", "job", id, "error", markErr)
	}
	delete(s.handles, id)
	s.persistLocked()
	status := rec.Status
	snapshot := rec.Clone()
	s.mu.Unlock()

	if monErr != nil {
		slog.Warn("job monitor error", "job", id, "error", monErr)
	}
	metrics.IncOutcome(string(status))
	s.record(s.event(history.EventExit, snapshot))
	slog.Info("job finished", "job", id, "status", status, "exit_code", exitCode)
}

// drainOutput copies process output to the job's log file, replacing
// malformed UTF-8 rather than failing. Lines longer than the read buffer are
// written through in chunks, so output of any shape keeps memory bounded and
// never errors the monitor.
func (s *Service) drainOutput(id string, out *os.File) error {
	f, err := os.OpenFile(s.logPath(id), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		// Still drain the pipe so the child never blocks on a full buffer.
		_, _ = io.Copy(io.Discard, out)
		return fmt.Errorf("open job log: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := bufio.NewReaderSize(out, 64*1024)
	var carry []byte
	endedWithNewline := true
	for {
		chunk, rerr := r.ReadSlice('\n')
		if len(chunk) > 0 {
			buf := append(carry, chunk...)
			carry = carry[:0]
			if buf[len(buf)-1] != '\n' {
				// Hold back a trailing partial rune so sanitizing at a chunk
				// boundary never splits it.
				cut := fullRuneLen(buf)
				carry = append(carry, buf[cut:]...)
				buf = buf[:cut]
			}
			if len(buf) > 0 {
				if _, werr := f.WriteString(strings.ToValidUTF8(string(buf), "�")); werr != nil {
					return fmt.Errorf("write job log: %w", werr)
				}
				endedWithNewline = buf[len(buf)-1] == '\n'
			}
		}
		if rerr == bufio.ErrBufferFull {
			continue
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("read job output: %w", rerr)
		}
	}
	if len(carry) > 0 {
		if _, werr := f.WriteString(strings.ToValidUTF8(string(carry), "�")); werr != nil {
			return fmt.Errorf("write job log: %w", werr)
		}
		endedWithNewline = false
	}
	if !endedWithNewline {
		if _, werr := f.WriteString("\n"); werr != nil {
			return fmt.Errorf("write job log: %w", werr)
		}
	}
	return nil
}

// fullRuneLen returns the length of b excluding a trailing incomplete UTF-8
// sequence.
func fullRuneLen(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return i
			}
			break
		}
	}
	return len(b)
}
