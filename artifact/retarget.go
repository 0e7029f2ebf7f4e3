package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zzygyx9119/ensembl-pipeline/job"
)

var errEmptyNewRoot = errors.New("new root is empty")

// RetargetOptions controls a bulk artifact-path retarget.
type RetargetOptions struct {
	// NewRoot is the root the recorded paths are rewritten under.
	NewRoot string

	// Matcher selects which recorded paths belong to the old tree.
	// Nil means DefaultMatcher.
	Matcher PathMatcher

	// MinAge excludes jobs whose current status is younger. This is the
	// sole guard against rewriting paths a live attempt is still
	// writing to; there is no locking.
	MinAge time.Duration

	// DryRun reports what would change without mutating the store.
	DryRun bool

	// SampleSize bounds the match/miss samples kept in the report.
	// Zero means DefaultSampleSize.
	SampleSize int
}

// DefaultSampleSize is the number of example matches and misses a
// dry-run report retains.
const DefaultSampleSize = 10

// RetargetReport summarizes a retarget pass.
type RetargetReport struct {
	Examined  int
	Rewritten int
	Missed    int

	// MatchSample and MissSample hold the first examples seen, capped
	// at the configured sample size.
	MatchSample []string
	MissSample  []string
}

// Retarget rewrites the recorded stdout/stderr paths of every job
// whose current status is at least opts.MinAge old and whose paths
// match the configured matcher. Only the recorded paths move; the
// physical files are never touched, so a job still writing to the old
// location simply becomes orphaned data under the old root.
func (m *Manager) Retarget(ctx context.Context, store job.Store, opts RetargetOptions) (RetargetReport, error) {
	var report RetargetReport

	if opts.NewRoot == "" {
		return report, fmt.Errorf("retarget: %w", errEmptyNewRoot)
	}
	matcher := opts.Matcher
	if matcher == nil {
		matcher = DefaultMatcher()
	}
	sampleSize := opts.SampleSize
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}

	records, err := store.Find(ctx, opts.MinAge, job.FindOpts{})
	if err != nil {
		return report, fmt.Errorf("retarget: find stale jobs: %w", err)
	}

	for _, rec := range records {
		if rec.StdoutPath == "" && rec.StderrPath == "" {
			continue
		}
		report.Examined++

		newOut, okOut := matcher.Rewrite(rec.StdoutPath, opts.NewRoot)
		newErr, okErr := matcher.Rewrite(rec.StderrPath, opts.NewRoot)

		if !okOut && !okErr {
			report.Missed++
			if len(report.MissSample) < sampleSize {
				report.MissSample = append(report.MissSample, rec.StdoutPath)
			}
			continue
		}

		// A non-matching half of the pair is left untouched.
		if !okOut {
			newOut = rec.StdoutPath
		}
		if !okErr {
			newErr = rec.StderrPath
		}

		if len(report.MatchSample) < sampleSize {
			report.MatchSample = append(report.MatchSample, newOut)
		}

		if opts.DryRun {
			report.Rewritten++
			continue
		}

		if err := store.UpdateArtifactPaths(ctx, rec.ID, newOut, newErr); err != nil {
			return report, fmt.Errorf("retarget: job %d: %w", rec.ID, err)
		}
		report.Rewritten++
	}

	m.logger.Info("retarget finished",
		slog.Int("examined", report.Examined),
		slog.Int("rewritten", report.Rewritten),
		slog.Int("missed", report.Missed),
		slog.Bool("dry_run", opts.DryRun),
	)
	return report, nil
}
