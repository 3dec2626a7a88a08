package store

import "github.com/calmstack/jobkeep/internal/job"

// Store persists the full job map after every state change and reloads it on
// startup. Implementations must be safe to call while the service holds its
// lock, i.e. they never call back into the service.
type Store interface {
	// SaveAll rewrites the persisted state from the current in-memory map.
	// It is not incremental.
	SaveAll(jobs map[string]*job.Record) error
	// LoadAll parses the persisted state. Jobs recorded as RUNNING are
	// reclassified to UNKNOWN_STALE because their process handles cannot be
	// recovered across a restart.
	LoadAll() (map[string]*job.Record, error)
}
