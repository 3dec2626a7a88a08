package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecordDefaults(t *testing.T) {
	rec := New("demo-1", []string{"echo", "hello world"}, "demo", "/tmp/demo-1.log")
	assert.Equal(t, "demo-1", rec.ID)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, []string{"echo", "hello world"}, rec.Command)
	assert.Equal(t, "echo hello world", rec.CommandStr)
	assert.Nil(t, rec.PID)
	assert.Nil(t, rec.ExitCode)
	assert.Equal(t, "/tmp/demo-1.log", rec.OutputLogPath)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)
}

func TestMarkRunningSetsPID(t *testing.T) {
	rec := New("a", []string{"sleep", "1"}, "", "a.log")
	require.NoError(t, rec.MarkRunning(1234))
	require.NotNil(t, rec.PID)
	assert.Equal(t, 1234, *rec.PID)
	assert.Equal(t, StatusRunning, rec.Status)
}

func TestMarkExitedZeroIsCompleted(t *testing.T) {
	rec := New("a", []string{"true"}, "", "a.log")
	require.NoError(t, rec.MarkRunning(1))
	require.NoError(t, rec.MarkExited(0))
	assert.Equal(t, StatusCompleted, rec.Status)
	require.NotNil(t, rec.ExitCode)
	assert.Equal(t, 0, *rec.ExitCode)
	assert.Nil(t, rec.PID, "pid must be cleared once the process is gone")
}

func TestMarkExitedNonZeroIsFailed(t *testing.T) {
	rec := New("a", []string{"false"}, "", "a.log")
	require.NoError(t, rec.MarkRunning(1))
	require.NoError(t, rec.MarkExited(3))
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, 3, *rec.ExitCode)
}

func TestTerminalRejectsFurtherTransitions(t *testing.T) {
	rec := New("a", []string{"true"}, "", "a.log")
	require.NoError(t, rec.MarkRunning(1))
	require.NoError(t, rec.MarkExited(0))

	err := rec.MarkRunning(99)
	require.Error(t, err)
	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, StatusCompleted, ite.From)
	assert.Equal(t, StatusRunning, ite.To)
}

func TestMarkTerminatedOverridesTerminal(t *testing.T) {
	// An explicit stop wins even when the monitor already recorded the
	// natural exit, so the audit trail reflects operator intent.
	rec := New("a", []string{"sleep", "5"}, "", "a.log")
	require.NoError(t, rec.MarkRunning(1))
	require.NoError(t, rec.MarkExited(0))
	rec.MarkTerminated(-9)
	assert.Equal(t, StatusTerminated, rec.Status)
	assert.Equal(t, -9, *rec.ExitCode)
}

func TestMarkStaleFromRunning(t *testing.T) {
	rec := New("a", []string{"sleep", "5"}, "", "a.log")
	require.NoError(t, rec.MarkRunning(42))
	rec.MarkStale()
	assert.Equal(t, StatusUnknownStale, rec.Status)
	assert.Nil(t, rec.PID)
	require.NotNil(t, rec.ExitCode)
	assert.Equal(t, ExitCodeUnknown, *rec.ExitCode)
}

func TestPendingCanFailButNotComplete(t *testing.T) {
	assert.True(t, StatusPending.CanTransitionTo(StatusRunning))
	assert.True(t, StatusPending.CanTransitionTo(StatusFailed))
	assert.False(t, StatusPending.CanTransitionTo(StatusCompleted))
	assert.False(t, StatusPending.CanTransitionTo(StatusTerminated))
}

func TestTerminalSet(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusFailed, StatusTerminated, StatusFailedTermination, StatusUnknownStale}
	for _, st := range terminal {
		assert.True(t, st.Terminal(), "expected %s to be terminal", st)
	}
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
}

func TestCloneIsIndependent(t *testing.T) {
	rec := New("a", []string{"echo", "x"}, "lbl", "a.log")
	require.NoError(t, rec.MarkRunning(7))

	cp := rec.Clone()
	require.NotNil(t, cp.PID)
	*cp.PID = 999
	cp.Command[0] = "mutated"

	assert.Equal(t, 7, *rec.PID)
	assert.Equal(t, "echo", rec.Command[0])
}

func TestUpdatedAtIsMonotone(t *testing.T) {
	rec := New("a", []string{"true"}, "", "a.log")
	first := rec.UpdatedAt
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, rec.MarkRunning(1))
	assert.True(t, rec.UpdatedAt.After(first) || rec.UpdatedAt.Equal(first))
	assert.True(t, !rec.UpdatedAt.Before(rec.CreatedAt))
}
