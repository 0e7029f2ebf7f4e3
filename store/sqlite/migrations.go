package sqlite

// schema is applied idempotently on every Open.
const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	analysis          TEXT NOT NULL,
	module            TEXT NOT NULL,
	input_id          TEXT NOT NULL,
	parameters        TEXT NOT NULL DEFAULT '',
	submission_handle TEXT NOT NULL DEFAULT '',
	stdout_path       TEXT NOT NULL DEFAULT '',
	stderr_path       TEXT NOT NULL DEFAULT '',
	retry_count       INTEGER NOT NULL DEFAULT 0,
	created_at        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS job_status (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id      INTEGER NOT NULL REFERENCES jobs(id),
	status      TEXT NOT NULL CHECK (status IN
		('CREATED','SUBMITTED','RUNNING','SUCCESSFUL','FAILED','KILLED')),
	recorded_at INTEGER NOT NULL,
	is_current  INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_job_status_job ON job_status(job_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_job_status_current
	ON job_status(job_id) WHERE is_current = 1;
CREATE INDEX IF NOT EXISTS idx_jobs_analysis ON jobs(analysis);
`
