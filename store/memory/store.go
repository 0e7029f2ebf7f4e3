// Package memory provides a fully in-memory job.Store. Safe for
// concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	pipeline "github.com/zzygyx9119/ensembl-pipeline"
	"github.com/zzygyx9119/ensembl-pipeline/job"
)

var _ job.Store = (*Store)(nil)

// Store is an in-memory implementation of job.Store.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	jobs   map[int64]*job.Record
	events map[int64][]job.StatusEvent
	closed bool
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		nextID: 1,
		jobs:   make(map[int64]*job.Record),
		events: make(map[int64][]job.StatusEvent),
	}
}

// CreateJobs assigns IDs, persists the batch, and appends the initial
// CREATED event for each record.
func (s *Store) CreateJobs(_ context.Context, batch []*job.Record) ([]*job.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, pipeline.ErrStoreClosed
	}

	now := time.Now().UTC()
	out := make([]*job.Record, len(batch))
	for i, rec := range batch {
		cp := *rec
		cp.ID = s.nextID
		s.nextID++
		cp.CreatedAt = now

		s.jobs[cp.ID] = &cp
		s.events[cp.ID] = []job.StatusEvent{{
			JobID:     cp.ID,
			Status:    job.StatusCreated,
			Timestamp: now,
			IsCurrent: true,
		}}

		ret := cp
		out[i] = &ret
	}
	return out, nil
}

// GetJob retrieves a record by ID.
func (s *Store) GetJob(_ context.Context, jobID int64) (*job.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %d: %w", jobID, pipeline.ErrJobNotFound)
	}
	cp := *rec
	return &cp, nil
}

// AppendStatus appends one event and flips IsCurrent off the previous
// row. It enforces the lifecycle: illegal transitions are rejected and
// nothing follows a terminal status.
func (s *Store) AppendStatus(_ context.Context, jobID int64, status job.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, ok := s.events[jobID]
	if !ok {
		return fmt.Errorf("job %d: %w", jobID, pipeline.ErrJobNotFound)
	}
	cur := events[len(events)-1]
	if cur.Status.Terminal() {
		return fmt.Errorf("job %d: %w", jobID, pipeline.ErrJobFinished)
	}
	if !cur.Status.CanTransition(status) {
		return fmt.Errorf("job %d: %s -> %s: %w", jobID, cur.Status, status, pipeline.ErrInvalidTransition)
	}

	s.events[jobID][len(events)-1].IsCurrent = false
	s.events[jobID] = append(s.events[jobID], job.StatusEvent{
		JobID:     jobID,
		Status:    status,
		Timestamp: time.Now().UTC(),
		IsCurrent: true,
	})
	return nil
}

// CurrentStatus returns the current status and its age.
func (s *Store) CurrentStatus(_ context.Context, jobID int64) (job.Status, time.Duration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events, ok := s.events[jobID]
	if !ok || len(events) == 0 {
		return "", 0, fmt.Errorf("job %d: %w", jobID, pipeline.ErrNoStatus)
	}
	cur := events[len(events)-1]
	return cur.Status, cur.Age(time.Now().UTC()), nil
}

// StatusHistory returns all events for the job in append order.
func (s *Store) StatusHistory(_ context.Context, jobID int64) ([]job.StatusEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events, ok := s.events[jobID]
	if !ok {
		return nil, fmt.Errorf("job %d: %w", jobID, pipeline.ErrJobNotFound)
	}
	out := make([]job.StatusEvent, len(events))
	copy(out, events)
	return out, nil
}

// Find returns records whose current status is at least olderThan old
// and which match the filters, ordered by ID.
func (s *Store) Find(_ context.Context, olderThan time.Duration, opts job.FindOpts) ([]*job.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-olderThan)

	var out []*job.Record
	for id, rec := range s.jobs {
		events := s.events[id]
		cur := events[len(events)-1]

		if olderThan > 0 && cur.Timestamp.After(cutoff) {
			continue
		}
		if opts.Analysis != "" && rec.Analysis != opts.Analysis {
			continue
		}
		if opts.Status != "" && cur.Status != opts.Status {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// UpdateSubmission records the write-once submission handle.
func (s *Store) UpdateSubmission(_ context.Context, jobID int64, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %d: %w", jobID, pipeline.ErrJobNotFound)
	}
	if rec.SubmissionHandle != "" {
		return fmt.Errorf("job %d: %w", jobID, pipeline.ErrAlreadySubmitted)
	}
	rec.SubmissionHandle = handle
	return nil
}

// UpdateArtifactPaths rewrites the recorded stdout/stderr paths.
func (s *Store) UpdateArtifactPaths(_ context.Context, jobID int64, stdoutPath, stderrPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %d: %w", jobID, pipeline.ErrJobNotFound)
	}
	rec.StdoutPath = stdoutPath
	rec.StderrPath = stderrPath
	return nil
}

// CountByStatus returns job counts grouped by current status.
func (s *Store) CountByStatus(_ context.Context, analysis string) (map[job.Status]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[job.Status]int64)
	for id, rec := range s.jobs {
		if analysis != "" && rec.Analysis != analysis {
			continue
		}
		events := s.events[id]
		counts[events[len(events)-1].Status]++
	}
	return counts, nil
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
