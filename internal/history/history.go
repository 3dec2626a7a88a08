package history

import (
	"context"
	"time"
)

// EventType is the kind of job lifecycle event exported to audit sinks.
type EventType string

const (
	EventLaunch    EventType = "launch"
	EventExit      EventType = "exit"
	EventTerminate EventType = "terminate"
	EventPrune     EventType = "prune"
)

// Event is one exported lifecycle event. ExitCode is nil until the job
// reaches a terminal status.
type Event struct {
	Type          EventType `json:"type"`
	OccurredAt    time.Time `json:"occurred_at"`
	JobID         string    `json:"job_id"`
	Status        string    `json:"status"`
	PID           int       `json:"pid"`
	ExitCode      *int      `json:"exit_code,omitempty"`
	TrackingLabel string    `json:"tracking_label,omitempty"`
}

// Sink is a destination for job history events. Implementations must be safe
// for concurrent use; Send failures are logged by callers and never fatal.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}
