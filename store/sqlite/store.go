// Package sqlite provides a job.Store backed by an embedded SQLite
// database via the pure-Go modernc driver. Suited to single-host
// deployments where the controller and store share a machine.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	pipeline "github.com/zzygyx9119/ensembl-pipeline"
	"github.com/zzygyx9119/ensembl-pipeline/job"
)

var _ job.Store = (*Store)(nil)

// Store is a SQLite implementation of job.Store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// A single writer sidesteps SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
		`PRAGMA foreign_keys=ON;`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// CreateJobs persists the batch in one transaction, assigning IDs and
// appending the initial CREATED event for each record.
func (s *Store) CreateJobs(ctx context.Context, batch []*job.Record) ([]*job.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	out := make([]*job.Record, len(batch))
	for i, rec := range batch {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO jobs (analysis, module, input_id, parameters, retry_count, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			rec.Analysis, rec.Module, rec.InputID, rec.Parameters, rec.RetryCount, now.Unix(),
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite: insert job: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("sqlite: job id: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO job_status (job_id, status, recorded_at, is_current)
			 VALUES (?, ?, ?, 1)`,
			id, job.StatusCreated, now.UnixNano(),
		); err != nil {
			return nil, fmt.Errorf("sqlite: insert status: %w", err)
		}

		cp := *rec
		cp.ID = id
		cp.CreatedAt = now
		out[i] = &cp
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: commit: %w", err)
	}
	return out, nil
}

// GetJob retrieves a record by ID.
func (s *Store) GetJob(ctx context.Context, jobID int64) (*job.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, analysis, module, input_id, parameters,
		        submission_handle, stdout_path, stderr_path, retry_count, created_at
		 FROM jobs WHERE id = ?`, jobID)
	return scanRecord(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*job.Record, error) {
	var rec job.Record
	var createdAt int64
	err := row.Scan(&rec.ID, &rec.Analysis, &rec.Module, &rec.InputID, &rec.Parameters,
		&rec.SubmissionHandle, &rec.StdoutPath, &rec.StderrPath, &rec.RetryCount, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pipeline.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan job: %w", err)
	}
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &rec, nil
}

// AppendStatus appends one event and flips the previous current row,
// all inside a transaction so the single-current invariant holds at
// every observation point.
func (s *Store) AppendStatus(ctx context.Context, jobID int64, status job.Status) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	var cur job.Status
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM job_status WHERE job_id = ? AND is_current = 1`, jobID,
	).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("job %d: %w", jobID, pipeline.ErrJobNotFound)
	}
	if err != nil {
		return fmt.Errorf("sqlite: current status: %w", err)
	}

	if cur.Terminal() {
		return fmt.Errorf("job %d: %w", jobID, pipeline.ErrJobFinished)
	}
	if !cur.CanTransition(status) {
		return fmt.Errorf("job %d: %s -> %s: %w", jobID, cur, status, pipeline.ErrInvalidTransition)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE job_status SET is_current = 0 WHERE job_id = ? AND is_current = 1`, jobID,
	); err != nil {
		return fmt.Errorf("sqlite: flip current: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO job_status (job_id, status, recorded_at, is_current)
		 VALUES (?, ?, ?, 1)`,
		jobID, status, time.Now().UTC().UnixNano(),
	); err != nil {
		return fmt.Errorf("sqlite: insert status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// CurrentStatus returns the current status and its age.
func (s *Store) CurrentStatus(ctx context.Context, jobID int64) (job.Status, time.Duration, error) {
	var status job.Status
	var recordedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT status, recorded_at FROM job_status WHERE job_id = ? AND is_current = 1`, jobID,
	).Scan(&status, &recordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, fmt.Errorf("job %d: %w", jobID, pipeline.ErrNoStatus)
	}
	if err != nil {
		return "", 0, fmt.Errorf("sqlite: current status: %w", err)
	}
	return status, time.Since(time.Unix(0, recordedAt)), nil
}

// StatusHistory returns all events for the job in append order.
func (s *Store) StatusHistory(ctx context.Context, jobID int64) ([]job.StatusEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, status, recorded_at, is_current
		 FROM job_status WHERE job_id = ? ORDER BY recorded_at, id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: status history: %w", err)
	}
	defer rows.Close()

	var events []job.StatusEvent
	for rows.Next() {
		var ev job.StatusEvent
		var recordedAt int64
		if err := rows.Scan(&ev.JobID, &ev.Status, &recordedAt, &ev.IsCurrent); err != nil {
			return nil, fmt.Errorf("sqlite: scan status: %w", err)
		}
		ev.Timestamp = time.Unix(0, recordedAt).UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: status history: %w", err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("job %d: %w", jobID, pipeline.ErrJobNotFound)
	}
	return events, nil
}

// Find returns records whose current status is at least olderThan old
// and which match the filters.
func (s *Store) Find(ctx context.Context, olderThan time.Duration, opts job.FindOpts) ([]*job.Record, error) {
	query := `SELECT j.id, j.analysis, j.module, j.input_id, j.parameters,
	                 j.submission_handle, j.stdout_path, j.stderr_path, j.retry_count, j.created_at
	          FROM jobs j
	          JOIN job_status st ON st.job_id = j.id AND st.is_current = 1
	          WHERE 1=1`
	var args []any

	if olderThan > 0 {
		query += ` AND st.recorded_at <= ?`
		args = append(args, time.Now().UTC().Add(-olderThan).UnixNano())
	}
	if opts.Analysis != "" {
		query += ` AND j.analysis = ?`
		args = append(args, opts.Analysis)
	}
	if opts.Status != "" {
		query += ` AND st.status = ?`
		args = append(args, opts.Status)
	}
	query += ` ORDER BY j.id`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: find: %w", err)
	}
	defer rows.Close()

	var out []*job.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpdateSubmission records the write-once submission handle.
func (s *Store) UpdateSubmission(ctx context.Context, jobID int64, handle string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET submission_handle = ? WHERE id = ? AND submission_handle = ''`,
		handle, jobID)
	if err != nil {
		return fmt.Errorf("sqlite: update submission: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: update submission: %w", err)
	}
	if n == 0 {
		if _, err := s.GetJob(ctx, jobID); err != nil {
			return err
		}
		return fmt.Errorf("job %d: %w", jobID, pipeline.ErrAlreadySubmitted)
	}
	return nil
}

// UpdateArtifactPaths rewrites the recorded stdout/stderr paths.
func (s *Store) UpdateArtifactPaths(ctx context.Context, jobID int64, stdoutPath, stderrPath string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET stdout_path = ?, stderr_path = ? WHERE id = ?`,
		stdoutPath, stderrPath, jobID)
	if err != nil {
		return fmt.Errorf("sqlite: update paths: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: update paths: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("job %d: %w", jobID, pipeline.ErrJobNotFound)
	}
	return nil
}

// CountByStatus returns job counts grouped by current status.
func (s *Store) CountByStatus(ctx context.Context, analysis string) (map[job.Status]int64, error) {
	query := `SELECT st.status, COUNT(*)
	          FROM job_status st
	          JOIN jobs j ON j.id = st.job_id
	          WHERE st.is_current = 1`
	var args []any
	if analysis != "" {
		query += ` AND j.analysis = ?`
		args = append(args, analysis)
	}
	query += ` GROUP BY st.status`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: count: %w", err)
	}
	defer rows.Close()

	counts := make(map[job.Status]int64)
	for rows.Next() {
		var status job.Status
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("sqlite: scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
