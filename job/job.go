// Package job defines the unit of work scheduled by the pipeline: the
// record persisted per attempt, the status machine its lifecycle moves
// through, and the Store contract the persistence layer satisfies.
package job

import (
	"fmt"
	"time"
)

// Status represents the lifecycle state of a job attempt.
type Status string

const (
	// StatusCreated means the record exists but no backend has accepted it.
	StatusCreated Status = "CREATED"
	// StatusSubmitted means a backend accepted the job for queuing.
	StatusSubmitted Status = "SUBMITTED"
	// StatusRunning means the attempt has started and holds a submission handle.
	StatusRunning Status = "RUNNING"
	// StatusSuccessful means the attempt finished with a zero exit.
	StatusSuccessful Status = "SUCCESSFUL"
	// StatusFailed means the attempt finished abnormally. There is no
	// automatic retry; a fresh record must be created for the same input.
	StatusFailed Status = "FAILED"
	// StatusKilled means the attempt was cancelled by an explicit kill.
	StatusKilled Status = "KILLED"
)

// Terminal reports whether the status ends the attempt. No further
// status event may be appended for a job once a terminal status is
// current.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccessful, StatusFailed, StatusKilled:
		return true
	}
	return false
}

// Valid reports whether s is one of the known status values.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusSubmitted, StatusRunning,
		StatusSuccessful, StatusFailed, StatusKilled:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal step
// of the lifecycle. FAILED is reachable from any non-terminal state
// because a submission can fail before the attempt ever runs.
func (s Status) CanTransition(next Status) bool {
	if s.Terminal() {
		return false
	}
	switch next {
	case StatusSubmitted:
		return s == StatusCreated
	case StatusRunning:
		return s == StatusSubmitted
	case StatusSuccessful, StatusKilled:
		return s == StatusRunning
	case StatusFailed:
		return s == StatusCreated || s == StatusSubmitted || s == StatusRunning
	}
	return false
}

// Record is one scheduled unit of work tied to an analysis and an
// input identifier. Input fields are immutable after creation; the
// submission handle and artifact paths are set exactly once, when the
// job leaves CREATED, and are then immutable for that attempt.
type Record struct {
	ID       int64  `json:"id"`
	Analysis string `json:"analysis"`
	Module   string `json:"module"`

	// InputID identifies the work assigned to this job. For partitioned
	// work it is an encoded "start:end" key range.
	InputID string `json:"input_id"`

	// Parameters is an opaque blob handed to the payload unchanged.
	Parameters string `json:"parameters,omitempty"`

	// SubmissionHandle is the process id (local backend) or the remote
	// scheduler's job identifier, set only once the attempt starts.
	SubmissionHandle string `json:"submission_handle,omitempty"`

	StdoutPath string `json:"stdout_path,omitempty"`
	StderrPath string `json:"stderr_path,omitempty"`

	RetryCount int       `json:"retry_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// RangeInputID encodes an inclusive key range as a job input
// identifier in the conventional "start:end" form.
func RangeInputID(start, end int64) string {
	return fmt.Sprintf("%d:%d", start, end)
}

// StatusEvent is one append-only row of a job's status history.
// Exactly one event per job has IsCurrent set at any observation
// point; the store flips the previous row off atomically with each
// append.
type StatusEvent struct {
	JobID     int64     `json:"job_id"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	IsCurrent bool      `json:"is_current"`
}

// Age returns how long ago the event was recorded.
func (e StatusEvent) Age(now time.Time) time.Duration {
	return now.Sub(e.Timestamp)
}
