// Package controller orchestrates the pipeline core: it turns
// partitioned input ranges into persisted job records, routes them to
// the backend configured for their analysis, drains backend backlogs
// on a periodic tick, and exposes the artifact maintenance operations.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	pipeline "github.com/zzygyx9119/ensembl-pipeline"
	"github.com/zzygyx9119/ensembl-pipeline/artifact"
	"github.com/zzygyx9119/ensembl-pipeline/backend"
	"github.com/zzygyx9119/ensembl-pipeline/job"
	"github.com/zzygyx9119/ensembl-pipeline/partition"
)

// Controller ties the partitioner, job store, artifact manager, and
// execution backends together. Analyses are registered up front and
// immutable for the process lifetime.
type Controller struct {
	instanceID uuid.UUID
	store      job.Store
	artifacts  *artifact.Manager
	logger     *slog.Logger

	analyses map[string]job.Analysis
	backends map[string]backend.Backend
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// New creates a Controller over the given store and artifact manager.
func New(store job.Store, artifacts *artifact.Manager, opts ...Option) *Controller {
	c := &Controller{
		instanceID: uuid.New(),
		store:      store,
		artifacts:  artifacts,
		logger:     slog.Default(),
		analyses:   make(map[string]job.Analysis),
		backends:   make(map[string]backend.Backend),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InstanceID identifies this controller in logs and shared trees.
func (c *Controller) InstanceID() uuid.UUID { return c.instanceID }

// Register binds an analysis to the backend that will run its jobs.
func (c *Controller) Register(a job.Analysis, be backend.Backend) {
	c.analyses[a.LogicName] = a
	c.backends[a.LogicName] = be
}

// Analysis looks up a registered analysis by logic name.
func (c *Controller) Analysis(logicName string) (job.Analysis, error) {
	a, ok := c.analyses[logicName]
	if !ok {
		return job.Analysis{}, fmt.Errorf("%w: %s", pipeline.ErrAnalysisNotFound, logicName)
	}
	return a, nil
}

// CreateBatch persists one job record per chunk for the analysis and
// returns the records with their store-assigned IDs. Input fields are
// never mutated after this point.
func (c *Controller) CreateBatch(ctx context.Context, logicName string, chunks []partition.WorkChunk) ([]*job.Record, error) {
	a, err := c.Analysis(logicName)
	if err != nil {
		return nil, err
	}

	batch := make([]*job.Record, len(chunks))
	for i, ch := range chunks {
		batch[i] = &job.Record{
			Analysis:   a.LogicName,
			Module:     a.Module,
			InputID:    job.RangeInputID(ch.Start, ch.End),
			Parameters: a.Parameters,
		}
	}

	created, err := c.store.CreateJobs(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("create batch for %s: %w", logicName, err)
	}

	c.logger.Info("batch created",
		slog.String("analysis", logicName),
		slog.Int("jobs", len(created)),
		slog.String("controller", c.instanceID.String()),
	)
	return created, nil
}

// SubmitAll routes each job to its analysis' backend. Jobs for the
// same backend are submitted sequentially so backlog order follows
// submission order; distinct backends proceed in parallel. Individual
// submission failures are collected, not fatal to the wave.
func (c *Controller) SubmitAll(ctx context.Context, recs []*job.Record) error {
	byBackend := make(map[string][]*job.Record)
	var unrouted []error
	for _, rec := range recs {
		if _, ok := c.backends[rec.Analysis]; !ok {
			unrouted = append(unrouted, fmt.Errorf("job %d: %w: %s", rec.ID, pipeline.ErrNoBackend, rec.Analysis))
			continue
		}
		byBackend[rec.Analysis] = append(byBackend[rec.Analysis], rec)
	}

	g, gctx := errgroup.WithContext(ctx)
	errsCh := make(chan error, len(byBackend))

	for logicName, jobs := range byBackend {
		logicName, jobs := logicName, jobs
		be := c.backends[logicName]
		g.Go(func() error {
			var errs []error
			for _, rec := range jobs {
				result, err := be.Submit(gctx, rec)
				if err != nil {
					c.logger.Error("submission failed",
						slog.Int64("job_id", rec.ID),
						slog.String("analysis", rec.Analysis),
						slog.String("error", err.Error()),
					)
					errs = append(errs, err)
					continue
				}
				c.logger.Debug("job submitted",
					slog.Int64("job_id", rec.ID),
					slog.String("result", string(result)),
				)
			}
			errsCh <- errors.Join(errs...)
			return nil
		})
	}

	_ = g.Wait()
	close(errsCh)

	all := unrouted
	for err := range errsCh {
		if err != nil {
			all = append(all, err)
		}
	}
	return errors.Join(all...)
}

// Kill requests best-effort cancellation of a job's running attempt.
func (c *Controller) Kill(ctx context.Context, rec *job.Record) error {
	be, ok := c.backends[rec.Analysis]
	if !ok {
		return fmt.Errorf("job %d: %w: %s", rec.ID, pipeline.ErrNoBackend, rec.Analysis)
	}
	return be.Kill(ctx, rec)
}

// Tick flushes every backend's backlog. Called periodically; flushes
// are idempotent so an extra tick is harmless.
func (c *Controller) Tick(ctx context.Context) {
	for logicName, be := range c.backends {
		be.Flush(ctx)
		c.logger.Debug("backend flushed",
			slog.String("analysis", logicName),
			slog.Int("in_flight", be.InFlight()),
		)
	}
}

// Run ticks at the given interval until the context is cancelled.
func (c *Controller) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// Retarget bulk-rewrites recorded artifact paths under a new root.
// This is an explicit maintenance action, never part of the steady
// scheduling loop.
func (c *Controller) Retarget(ctx context.Context, opts artifact.RetargetOptions) (artifact.RetargetReport, error) {
	return c.artifacts.Retarget(ctx, c.store, opts)
}

// Cleanup bulk-deletes stale artifacts under the given roots. Like
// Retarget, it is invoked explicitly by an operator.
func (c *Controller) Cleanup(ctx context.Context, roots []string, opts artifact.CleanupOptions) (artifact.CleanupReport, error) {
	return c.artifacts.Cleanup(ctx, roots, opts)
}

// Stats returns per-status job counts, optionally for one analysis.
func (c *Controller) Stats(ctx context.Context, analysis string) (map[job.Status]int64, error) {
	return c.store.CountByStatus(ctx, analysis)
}
