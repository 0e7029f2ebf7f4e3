// Package remote submits job attempts to a batch cluster scheduler
// through an abstract Client. The submission handle is the remote
// scheduler's job identifier; completion is not observed locally but
// arrives through the status watcher that feeds the job store, which
// then calls HandleCompletion to free the slot.
package remote

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pipeline "github.com/zzygyx9119/ensembl-pipeline"
	"github.com/zzygyx9119/ensembl-pipeline/artifact"
	"github.com/zzygyx9119/ensembl-pipeline/backend"
	"github.com/zzygyx9119/ensembl-pipeline/job"
)

// SubmitRequest carries everything the remote scheduler needs to run
// one attempt.
type SubmitRequest struct {
	JobID      int64
	Analysis   string
	Module     string
	InputID    string
	Parameters string
	StdoutPath string
	StderrPath string
}

// Client is the abstract contract of the remote batch scheduler.
// Submit and Kill are expected to be short network calls; status
// propagation is asynchronous and handled elsewhere.
type Client interface {
	// Submit hands the attempt to the scheduler and returns its remote
	// job identifier.
	Submit(ctx context.Context, req SubmitRequest) (handle string, err error)

	// Kill requests cancellation of a previously submitted attempt.
	Kill(ctx context.Context, handle string) error
}

// Backend submits attempts to a batch cluster under a local admission
// ceiling; the remote scheduler enforces its own quota beyond that.
// Safe for concurrent use.
type Backend struct {
	slots     *backend.Slots
	client    Client
	store     job.Store
	artifacts *artifact.Manager
	logger    *slog.Logger

	mu      sync.Mutex
	handles map[int64]string
}

var _ backend.Backend = (*Backend)(nil)

// New creates a remote backend with the given admission ceiling.
func New(client Client, store job.Store, artifacts *artifact.Manager, ceiling int, logger *slog.Logger) *Backend {
	return &Backend{
		slots:     backend.NewSlots(ceiling),
		client:    client,
		store:     store,
		artifacts: artifacts,
		logger:    logger,
		handles:   make(map[int64]string),
	}
}

// Submit accepts the job, marks it SUBMITTED, and either forwards it
// to the remote scheduler or queues it behind earlier submissions.
func (b *Backend) Submit(ctx context.Context, rec *job.Record) (backend.Result, error) {
	if err := b.store.AppendStatus(ctx, rec.ID, job.StatusSubmitted); err != nil {
		return "", fmt.Errorf("remote: mark submitted: %w", err)
	}

	if !b.slots.Admit(rec) {
		return backend.ResultQueued, nil
	}

	if err := b.start(ctx, rec); err != nil {
		b.slots.Release()
		b.Flush(ctx)
		return "", err
	}
	return backend.ResultStarted, nil
}

// Flush drains the backlog while admission capacity remains.
func (b *Backend) Flush(ctx context.Context) {
	for {
		rec := b.slots.Next()
		if rec == nil {
			return
		}
		if err := b.start(ctx, rec); err != nil {
			b.logger.Error("failed to submit queued job",
				slog.Int64("job_id", rec.ID),
				slog.String("error", err.Error()),
			)
			b.slots.Release()
		}
	}
}

// start derives artifact paths and forwards one attempt to the remote
// scheduler. A rejection records FAILED; no automatic retry follows.
func (b *Backend) start(ctx context.Context, rec *job.Record) error {
	paths, err := b.artifacts.Paths(rec.Analysis, rec.ID, time.Now())
	if err != nil {
		return b.fail(ctx, rec, err)
	}
	if err := b.store.UpdateArtifactPaths(ctx, rec.ID, paths.Stdout, paths.Stderr); err != nil {
		return b.fail(ctx, rec, err)
	}
	rec.StdoutPath = paths.Stdout
	rec.StderrPath = paths.Stderr

	handle, err := b.client.Submit(ctx, SubmitRequest{
		JobID:      rec.ID,
		Analysis:   rec.Analysis,
		Module:     rec.Module,
		InputID:    rec.InputID,
		Parameters: rec.Parameters,
		StdoutPath: paths.Stdout,
		StderrPath: paths.Stderr,
	})
	if err != nil {
		return b.fail(ctx, rec, err)
	}
	rec.SubmissionHandle = handle

	if err := b.store.UpdateSubmission(ctx, rec.ID, handle); err != nil {
		b.logger.Error("failed to record submission handle",
			slog.Int64("job_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := b.store.AppendStatus(ctx, rec.ID, job.StatusRunning); err != nil {
		b.logger.Error("failed to mark job running",
			slog.Int64("job_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}

	b.mu.Lock()
	b.handles[rec.ID] = handle
	b.mu.Unlock()

	b.logger.Info("attempt submitted to cluster",
		slog.Int64("job_id", rec.ID),
		slog.String("analysis", rec.Analysis),
		slog.String("handle", handle),
	)
	return nil
}

func (b *Backend) fail(ctx context.Context, rec *job.Record, cause error) error {
	if err := b.store.AppendStatus(ctx, rec.ID, job.StatusFailed); err != nil {
		b.logger.Error("failed to record submission failure",
			slog.Int64("job_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
	return fmt.Errorf("remote: submit job %d: %w", rec.ID, cause)
}

// Kill forwards a cancellation to the remote scheduler. The terminal
// KILLED status arrives later through the status watcher, if the
// attempt did not already finish naturally.
func (b *Backend) Kill(ctx context.Context, rec *job.Record) error {
	b.mu.Lock()
	handle, ok := b.handles[rec.ID]
	b.mu.Unlock()

	if !ok {
		return fmt.Errorf("remote: job %d: %w", rec.ID, pipeline.ErrNotRunning)
	}
	if err := b.client.Kill(ctx, handle); err != nil {
		return fmt.Errorf("remote: kill job %d (handle %s): %w", rec.ID, handle, err)
	}
	return nil
}

// HandleCompletion frees the slot held by a finished attempt and
// re-flushes the backlog. The caller is the cluster status watcher,
// which has already appended the terminal status through the store;
// this backend never writes terminal events itself.
func (b *Backend) HandleCompletion(ctx context.Context, jobID int64) {
	b.mu.Lock()
	_, ok := b.handles[jobID]
	delete(b.handles, jobID)
	b.mu.Unlock()

	if !ok {
		// Duplicate or unknown completion; releasing a slot we never
		// held would skew the ceiling.
		return
	}
	b.slots.Release()
	b.Flush(ctx)
}

// InFlight returns the number of attempts submitted and not yet
// reported complete.
func (b *Backend) InFlight() int { return b.slots.InFlight() }

// Backlog returns the number of queued jobs.
func (b *Backend) Backlog() int { return b.slots.Backlog() }
