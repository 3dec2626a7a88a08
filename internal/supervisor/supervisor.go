package supervisor

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/calmstack/jobkeep/internal/env"
	"github.com/calmstack/jobkeep/internal/metrics"
)

// Spec describes one named dependency process, usually loaded from
// configuration.
type Spec struct {
	Command string   `json:"command" mapstructure:"command"`
	Args    []string `json:"args" mapstructure:"args"`
	Env     []string `json:"env" mapstructure:"env"` // "K=V" entries merged over the OS environment
	WorkDir string   `json:"work_dir" mapstructure:"work_dir"`
}

// Handle is a live dependency process owned by the supervisor call that
// created it. Handles are never shared across supervisor instances; the
// caller must pass every handle it received to StopAll, success or not.
type Handle struct {
	Name string
	PID  int
	cmd  *exec.Cmd
	done chan struct{} // closed once the reaper observed exit
}

const (
	startAttempts = 3
	startupProbe  = 1 * time.Second
	stopWait      = 5 * time.Second
)

// Supervisor starts and stops the helper processes a task declares as
// prerequisites. Instances are scoped to one invocation and unshared:
// concurrent invocations requesting the same name each spawn an independent
// process.
type Supervisor struct {
	env *env.Env
}

func New() *Supervisor {
	return &Supervisor{env: env.New()}
}

// SetGlobalEnv adds "K=V" overrides applied to every dependency this
// supervisor starts, layered between the OS environment and per-spec entries.
func (s *Supervisor) SetGlobalEnv(kvs []string) {
	for _, kv := range kvs {
		if i := strings.IndexByte(kv, '='); i > 0 {
			s.env.Set(kv[:i], kv[i+1:])
		}
	}
}

// StartRequired starts each named dependency in order. A dependency gets
// startAttempts total attempts with exponential backoff (1s, then 2s) between
// them; each attempt spawns, waits startupProbe, and probes liveness.
//
// On failure the handles started so far are still returned alongside the
// error so the caller can clean them up; the caller is responsible for
// invoking StopAll in a cleanup path regardless of success or failure.
func (s *Supervisor) StartRequired(names []string, configs map[string]Spec) ([]*Handle, error) {
	handles := make([]*Handle, 0, len(names))
	for _, name := range names {
		spec, ok := configs[name]
		if !ok {
			return handles, fmt.Errorf("dependency %q: no configuration", name)
		}
		h, err := s.startWithRetries(name, spec)
		if err != nil {
			return handles, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

func (s *Supervisor) startWithRetries(name string, spec Spec) (*Handle, error) {
	backoff := 1 * time.Second
	var lastErr error
	for attempt := 1; attempt <= startAttempts; attempt++ {
		h, err := s.startOnce(name, spec)
		if err == nil {
			metrics.IncDepStart(name, "ok")
			slog.Info("dependency started", "name", name, "pid", h.PID, "attempt", attempt)
			return h, nil
		}
		lastErr = err
		metrics.IncDepStart(name, "error")
		slog.Warn("dependency start failed", "name", name, "attempt", attempt, "error", err)
		if attempt < startAttempts {
			metrics.IncDepRetry(name)
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("dependency %q failed after %d attempts: %w", name, startAttempts, lastErr)
}

// startOnce spawns the process, gives it startupProbe to settle, and verifies
// it is still alive.
func (s *Supervisor) startOnce(name string, spec Spec) (*Handle, error) {
	if spec.Command == "" {
		return nil, fmt.Errorf("empty command")
	}
	cmd := exec.Command(spec.Command, spec.Args...)
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}
	cmd.Env = s.env.Merge(spec.Env)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn: %w", err)
	}

	h := &Handle{Name: name, PID: cmd.Process.Pid, cmd: cmd, done: make(chan struct{})}
	// Single waiter per process; Stop coordinates through done.
	go func() {
		_ = cmd.Wait()
		close(h.done)
	}()

	select {
	case <-h.done:
		return nil, fmt.Errorf("exited during startup probe: %s", exitString(cmd))
	case <-time.After(startupProbe):
	}
	return h, nil
}

// StopAll stops every handle: SIGTERM to the process group, up to stopWait to
// exit, then SIGKILL and a second wait. Per-handle failures are logged and
// never abort the cleanup of the remaining handles. StopAll(nil) is a no-op.
func (s *Supervisor) StopAll(handles []*Handle) {
	for _, h := range handles {
		if h == nil {
			continue
		}
		if err := h.stop(); err != nil {
			slog.Warn("failed to stop dependency", "name", h.Name, "pid", h.PID, "error", err)
		}
	}
}

func (h *Handle) stop() error {
	select {
	case <-h.done:
		return nil // already exited
	default:
	}
	if err := syscall.Kill(-h.PID, syscall.SIGTERM); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("signal: %w", err)
	}
	select {
	case <-h.done:
		return nil
	case <-time.After(stopWait):
	}
	if err := syscall.Kill(-h.PID, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("kill: %w", err)
	}
	select {
	case <-h.done:
	case <-time.After(stopWait):
		return fmt.Errorf("still running after SIGKILL")
	}
	return nil
}

func exitString(cmd *exec.Cmd) string {
	if cmd.ProcessState == nil {
		return "unknown exit"
	}
	return cmd.ProcessState.String()
}
