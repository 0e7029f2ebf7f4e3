package artifact

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// artifactLeaf matches the stdout/stderr naming convention of job
// attempts: job_<id>_<timestamp>.out or .err.
var artifactLeaf = regexp.MustCompile(`^job_[0-9]+_[0-9]+\.(out|err)$`)

// progressEvery is the sampling interval for cleanup progress logging.
// One line per this many deletions keeps operator output readable on
// trees with millions of files.
const progressEvery = 100

// CleanupOptions controls a retention cleanup pass.
type CleanupOptions struct {
	// MinAgeDays is the retention window. A file is stale only when its
	// modification, change, and access times are all older.
	MinAgeDays int

	// DryRun lists stale files without deleting anything.
	DryRun bool
}

// CleanupReport summarizes a retention cleanup pass.
type CleanupReport struct {
	Scanned int
	Stale   int
	Deleted int
	Failed  int
}

// Cleanup recursively finds regular files matching the artifact naming
// convention under the given roots, older than the retention window by
// every timestamp the filesystem tracks, and deletes them. Deletion is
// rate-limited by the manager's op delay to bound sustained load on
// shared network storage. The MinAge window is the only guard against
// racing an active writer, so callers must keep it comfortably larger
// than the longest-running attempt.
func (m *Manager) Cleanup(ctx context.Context, roots []string, opts CleanupOptions) (CleanupReport, error) {
	var report CleanupReport
	cutoff := time.Now().Add(-time.Duration(opts.MinAgeDays) * 24 * time.Hour)

	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				// Unreadable subtrees are reported, not fatal; partial
				// progress beats re-scanning the whole tree.
				m.logger.Warn("cleanup: skipping unreadable entry",
					slog.String("path", path),
					slog.String("error", walkErr.Error()),
				)
				report.Failed++
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			report.Scanned++
			if !artifactLeaf.MatchString(d.Name()) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				report.Failed++
				return nil
			}
			if !m.stale(path, info, cutoff) {
				return nil
			}
			report.Stale++

			if opts.DryRun {
				m.logger.Info("cleanup: stale artifact", slog.String("path", path))
				return nil
			}

			if m.limiter != nil {
				if err := m.limiter.Wait(ctx); err != nil {
					return err
				}
			}
			if err := os.Remove(path); err != nil {
				m.logger.Warn("cleanup: delete failed",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
				report.Failed++
				return nil
			}
			report.Deleted++

			if report.Deleted%progressEvery == 0 {
				m.logger.Info("cleanup progress",
					slog.Int("scanned", report.Scanned),
					slog.Int("deleted", report.Deleted),
				)
			}
			return nil
		})
		if err != nil {
			return report, err
		}
	}

	m.logger.Info("cleanup finished",
		slog.Int("scanned", report.Scanned),
		slog.Int("stale", report.Stale),
		slog.Int("deleted", report.Deleted),
		slog.Int("failed", report.Failed),
		slog.Bool("dry_run", opts.DryRun),
	)
	return report, nil
}

// allTimesBefore reports whether every timestamp the platform tracks
// for the file (modification, and where available change and access)
// is older than the cutoff.
func allTimesBefore(path string, info fs.FileInfo, cutoff time.Time) bool {
	if !info.ModTime().Before(cutoff) {
		return false
	}
	ctime, atime, ok := statTimes(path)
	if !ok {
		return true
	}
	return ctime.Before(cutoff) && atime.Before(cutoff)
}
