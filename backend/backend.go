// Package backend defines the execution strategy contract for job
// attempts and the concurrency bookkeeping shared by its
// implementations. The local variant forks child processes; the remote
// variant submits to a batch cluster scheduler.
package backend

import (
	"context"
	"sync"

	"github.com/zzygyx9119/ensembl-pipeline/job"
)

// Result reports how a backend handled a submission.
type Result string

const (
	// ResultStarted means an attempt started immediately.
	ResultStarted Result = "started"
	// ResultQueued means the job joined the FIFO backlog and will start
	// when capacity frees.
	ResultQueued Result = "queued"
)

// Backend accepts jobs and runs them under a concurrency ceiling.
// Implementations are safe for concurrent use; completion handling may
// run concurrently with Submit and Flush calls.
type Backend interface {
	// Submit requests a run. If an in-flight slot is free the attempt
	// starts immediately, otherwise the job is appended to the FIFO
	// backlog. The job transitions to SUBMITTED either way.
	Submit(ctx context.Context, rec *job.Record) (Result, error)

	// Flush starts backlog jobs while capacity remains, preserving FIFO
	// order. It is safe to call redundantly and must be re-invoked
	// after every slot release to avoid backlog starvation.
	Flush(ctx context.Context)

	// Kill requests best-effort cancellation of a running attempt.
	// Failure to cancel is reported, not retried.
	Kill(ctx context.Context, rec *job.Record) error

	// InFlight returns the current number of running attempts.
	InFlight() int
}

// Slots is the mutex-protected in-flight counter and FIFO backlog
// shared by backend implementations. Completion signals release slots
// asynchronously with respect to the submit path, so every method
// takes the lock for its whole critical section.
type Slots struct {
	mu       sync.Mutex
	ceiling  int
	inFlight int
	backlog  []*job.Record
}

// NewSlots creates slot bookkeeping with the given concurrency ceiling.
func NewSlots(ceiling int) *Slots {
	if ceiling < 1 {
		ceiling = 1
	}
	return &Slots{ceiling: ceiling}
}

// Admit consumes a slot and returns true when capacity remains;
// otherwise it appends the record to the backlog and returns false.
func (s *Slots) Admit(rec *job.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight < s.ceiling {
		s.inFlight++
		return true
	}
	s.backlog = append(s.backlog, rec)
	return false
}

// Release frees one slot. The caller must follow up with a Flush so a
// queued job can take the slot.
func (s *Slots) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight > 0 {
		s.inFlight--
	}
}

// Next pops the backlog head and consumes a slot for it. It returns
// nil when the backlog is empty or no capacity remains.
func (s *Slots) Next() *job.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.backlog) == 0 || s.inFlight >= s.ceiling {
		return nil
	}
	rec := s.backlog[0]
	s.backlog = s.backlog[1:]
	s.inFlight++
	return rec
}

// InFlight returns the current number of consumed slots.
func (s *Slots) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Backlog returns the current backlog length.
func (s *Slots) Backlog() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.backlog)
}
