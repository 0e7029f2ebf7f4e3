package postgres

// schema is applied idempotently on every New.
const schema = `
CREATE TABLE IF NOT EXISTS pipeline_jobs (
	id                BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	analysis          TEXT NOT NULL,
	module            TEXT NOT NULL,
	input_id          TEXT NOT NULL,
	parameters        TEXT NOT NULL DEFAULT '',
	submission_handle TEXT NOT NULL DEFAULT '',
	stdout_path       TEXT NOT NULL DEFAULT '',
	stderr_path       TEXT NOT NULL DEFAULT '',
	retry_count       INT NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS pipeline_job_status (
	id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	job_id      BIGINT NOT NULL REFERENCES pipeline_jobs(id),
	status      TEXT NOT NULL CHECK (status IN
		('CREATED','SUBMITTED','RUNNING','SUCCESSFUL','FAILED','KILLED')),
	recorded_at TIMESTAMPTZ NOT NULL,
	is_current  BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_pipeline_job_status_job
	ON pipeline_job_status(job_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_pipeline_job_status_current
	ON pipeline_job_status(job_id) WHERE is_current;
CREATE INDEX IF NOT EXISTS idx_pipeline_jobs_analysis
	ON pipeline_jobs(analysis);
`
