package job

import (
	"context"
	"time"
)

// FindOpts filters Find queries. Zero values mean "no constraint".
type FindOpts struct {
	// Analysis filters by logic name.
	Analysis string
	// Status filters by the job's current status.
	Status Status
	// Limit is the maximum number of records to return. Zero means no limit.
	Limit int
}

// Store defines the persistence contract for jobs and their status
// history. Implementations must enforce the single-current-row
// invariant on status events and reject appends after a terminal
// status.
type Store interface {
	// CreateJobs persists a batch of new records, assigns their IDs, and
	// appends the initial CREATED status event for each. The returned
	// slice carries the assigned IDs in input order.
	CreateJobs(ctx context.Context, batch []*Record) ([]*Record, error)

	// GetJob retrieves a record by ID.
	GetJob(ctx context.Context, jobID int64) (*Record, error)

	// AppendStatus appends one status event for the job and atomically
	// flips IsCurrent off the previous row. Illegal transitions return
	// ErrInvalidTransition; appends after a terminal status return
	// ErrJobFinished.
	AppendStatus(ctx context.Context, jobID int64, status Status) error

	// CurrentStatus returns the job's current status and its age, the
	// time elapsed since the current row was appended.
	CurrentStatus(ctx context.Context, jobID int64) (Status, time.Duration, error)

	// StatusHistory returns all status events for the job in append order.
	StatusHistory(ctx context.Context, jobID int64) ([]StatusEvent, error)

	// Find returns records whose current status is older than the given
	// duration and which match the filters. A zero olderThan matches all.
	Find(ctx context.Context, olderThan time.Duration, opts FindOpts) ([]*Record, error)

	// UpdateSubmission records the submission handle for the attempt.
	// The handle is write-once; a second call returns ErrAlreadySubmitted.
	UpdateSubmission(ctx context.Context, jobID int64, handle string) error

	// UpdateArtifactPaths rewrites the recorded stdout/stderr paths.
	// Used at submission time and by the bulk retarget operation; it
	// never touches the physical files.
	UpdateArtifactPaths(ctx context.Context, jobID int64, stdoutPath, stderrPath string) error

	// CountByStatus returns the number of jobs per current status,
	// optionally restricted to one analysis.
	CountByStatus(ctx context.Context, analysis string) (map[Status]int64, error)

	// Close releases the store's resources.
	Close() error
}
