package job

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending           Status = "PENDING"
	StatusRunning           Status = "RUNNING"
	StatusCompleted         Status = "COMPLETED"
	StatusFailed            Status = "FAILED"
	StatusTerminated        Status = "TERMINATED"
	StatusFailedTermination Status = "FAILED_TERMINATION"
	StatusUnknownStale      Status = "UNKNOWN_STALE"
)

// ExitCodeUnknown is the sentinel recorded when no real exit code exists
// (spawn failure, monitor error, stale reload, unkillable handle).
const ExitCodeUnknown = -1

// Terminal reports whether no further transition to RUNNING can occur; the
// only operation left for a terminal job is removal via prune.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTerminated, StatusFailedTermination, StatusUnknownStale:
		return true
	}
	return false
}

// CanTransitionTo encodes the legal state machine:
//
//	PENDING → RUNNING | FAILED
//	RUNNING → COMPLETED | FAILED | TERMINATED | FAILED_TERMINATION | UNKNOWN_STALE
//
// Terminal states accept nothing.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusFailed
	case StatusRunning:
		return next.Terminal()
	default:
		return false
	}
}

func (s Status) String() string { return string(s) }

// TerminateResult is the outcome of a terminate call.
type TerminateResult string

const (
	TerminateDone           TerminateResult = "TERMINATED"
	TerminateAlreadyStopped TerminateResult = "ALREADY_STOPPED"
	TerminateNotFound       TerminateResult = "NOT_FOUND"
	TerminateError          TerminateResult = "ERROR"
)
