// Package local runs job attempts as detached child processes on the
// machine hosting the controller. Each attempt's stdout and stderr are
// redirected to artifact files recorded on the job before the process
// starts; the submission handle is the child's process id.
package local

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	pipeline "github.com/zzygyx9119/ensembl-pipeline"
	"github.com/zzygyx9119/ensembl-pipeline/artifact"
	"github.com/zzygyx9119/ensembl-pipeline/backend"
	"github.com/zzygyx9119/ensembl-pipeline/job"
)

// CommandFunc builds the argv for one job attempt.
type CommandFunc func(rec *job.Record) (name string, args []string)

// defaultCommand runs the record's module as the program, handing it
// the analysis, input range, and parameter blob.
func defaultCommand(rec *job.Record) (string, []string) {
	args := []string{"-analysis", rec.Analysis, "-input", rec.InputID}
	if rec.Parameters != "" {
		args = append(args, "-parameters", rec.Parameters)
	}
	return rec.Module, args
}

// attempt tracks one running child process.
type attempt struct {
	cmd    *exec.Cmd
	stdout *os.File
	stderr *os.File
	killed bool
}

// Backend runs attempts as child processes under a concurrency
// ceiling. Safe for concurrent use; the per-child reaper goroutine is
// the only writer of terminal statuses, so a kill racing natural
// completion can never append two terminal events.
type Backend struct {
	slots     *backend.Slots
	store     job.Store
	artifacts *artifact.Manager
	command   CommandFunc
	logger    *slog.Logger

	mu       sync.Mutex
	attempts map[int64]*attempt
}

var _ backend.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithCommand sets how the argv for an attempt is built.
func WithCommand(fn CommandFunc) Option {
	return func(b *Backend) { b.command = fn }
}

// New creates a local backend with the given concurrency ceiling.
func New(store job.Store, artifacts *artifact.Manager, ceiling int, logger *slog.Logger, opts ...Option) *Backend {
	b := &Backend{
		slots:     backend.NewSlots(ceiling),
		store:     store,
		artifacts: artifacts,
		command:   defaultCommand,
		logger:    logger,
		attempts:  make(map[int64]*attempt),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Submit accepts the job, marks it SUBMITTED, and either starts an
// attempt or queues it behind earlier submissions.
func (b *Backend) Submit(ctx context.Context, rec *job.Record) (backend.Result, error) {
	if err := b.store.AppendStatus(ctx, rec.ID, job.StatusSubmitted); err != nil {
		return "", fmt.Errorf("local: mark submitted: %w", err)
	}

	if !b.slots.Admit(rec) {
		b.logger.Debug("job queued",
			slog.Int64("job_id", rec.ID),
			slog.String("analysis", rec.Analysis),
		)
		return backend.ResultQueued, nil
	}

	if err := b.start(ctx, rec); err != nil {
		b.slots.Release()
		b.Flush(ctx)
		return "", err
	}
	return backend.ResultStarted, nil
}

// Flush drains the backlog while capacity remains, in FIFO order. A
// start failure frees the slot and the drain continues with the next
// queued job.
func (b *Backend) Flush(ctx context.Context) {
	for {
		rec := b.slots.Next()
		if rec == nil {
			return
		}
		if err := b.start(ctx, rec); err != nil {
			b.logger.Error("failed to start queued job",
				slog.Int64("job_id", rec.ID),
				slog.String("error", err.Error()),
			)
			b.slots.Release()
		}
	}
}

// start launches the child for one attempt. The caller has already
// consumed a slot. A failure here records FAILED for the job; the
// caller releases the slot.
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

	stdout, err := os.Create(paths.Stdout)
	if err != nil {
		return b.fail(ctx, rec, err)
	}
	stderr, err := os.Create(paths.Stderr)
	if err != nil {
		stdout.Close()
		return b.fail(ctx, rec, err)
	}

	name, args := b.command(rec)
	cmd := exec.Command(name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Stdin stays nil so the child reads from the null device; the
	// payload must take everything from its argv and parameter blob.
	cmd.SysProcAttr = detachedProcAttr()

	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		return b.fail(ctx, rec, err)
	}

	pid := cmd.Process.Pid
	handle := fmt.Sprintf("%d", pid)
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

	at := &attempt{cmd: cmd, stdout: stdout, stderr: stderr}
	b.mu.Lock()
	b.attempts[rec.ID] = at
	b.mu.Unlock()

	b.logger.Info("attempt started",
		slog.Int64("job_id", rec.ID),
		slog.String("analysis", rec.Analysis),
		slog.Int("pid", pid),
	)

	go b.reap(rec, at)
	return nil
}

// reap blocks until the child exits, appends the single terminal
// status for the attempt, then frees the slot and re-flushes so a
// queued job can start.
func (b *Backend) reap(rec *job.Record, at *attempt) {
	waitErr := at.cmd.Wait()
	at.stdout.Close()
	at.stderr.Close()

	b.mu.Lock()
	killed := at.killed
	delete(b.attempts, rec.ID)
	b.mu.Unlock()

	status := job.StatusSuccessful
	switch {
	case killed:
		status = job.StatusKilled
	case waitErr != nil:
		status = job.StatusFailed
	}

	ctx := context.Background()
	if err := b.store.AppendStatus(ctx, rec.ID, status); err != nil {
		b.logger.Error("failed to record terminal status",
			slog.Int64("job_id", rec.ID),
			slog.String("status", string(status)),
			slog.String("error", err.Error()),
		)
	}

	b.logger.Info("attempt finished",
		slog.Int64("job_id", rec.ID),
		slog.String("status", string(status)),
	)

	b.slots.Release()
	b.Flush(ctx)
}

// fail records a FAILED terminal status for a job whose attempt could
// not be started. No automatic retry follows; a fresh record must be
// created for the same input.
func (b *Backend) fail(ctx context.Context, rec *job.Record, cause error) error {
	if err := b.store.AppendStatus(ctx, rec.ID, job.StatusFailed); err != nil {
		b.logger.Error("failed to record submission failure",
			slog.Int64("job_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
	return fmt.Errorf("local: start job %d: %w", rec.ID, cause)
}

// Kill signals the attempt's process group. The reaper goroutine
// observes the resulting exit and records KILLED; if the child wins
// the race and exits naturally first, its own terminal status stands.
func (b *Backend) Kill(_ context.Context, rec *job.Record) error {
	b.mu.Lock()
	at, ok := b.attempts[rec.ID]
	if ok {
		at.killed = true
	}
	b.mu.Unlock()

	if !ok {
		return fmt.Errorf("local: job %d: %w", rec.ID, pipeline.ErrNotRunning)
	}

	if err := killProcessGroup(at.cmd.Process.Pid); err != nil {
		b.logger.Warn("kill signal failed",
			slog.Int64("job_id", rec.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("local: kill job %d: %w", rec.ID, err)
	}
	return nil
}

// InFlight returns the number of running attempts.
func (b *Backend) InFlight() int { return b.slots.InFlight() }

// Backlog returns the number of queued jobs.
func (b *Backend) Backlog() int { return b.slots.Backlog() }
