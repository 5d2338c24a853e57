package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job mirrors the jobs table.
type Job struct {
	ID           uuid.UUID
	JobType      string
	Payload      json.RawMessage
	Status       string
	Priority     int32
	Attempts     int32
	MaxAttempts  int32
	ErrorMessage sql.NullString
	ScheduledAt  time.Time
	StartedAt    sql.NullTime
	CompletedAt  sql.NullTime
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const jobColumns = `id, job_type, payload, status, priority, attempts, max_attempts,
	error_message, scheduled_at, started_at, completed_at, created_at, updated_at`

func scanJob(row *sql.Row) (Job, error) {
	var j Job
	err := row.Scan(
		&j.ID, &j.JobType, &j.Payload, &j.Status, &j.Priority, &j.Attempts,
		&j.MaxAttempts, &j.ErrorMessage, &j.ScheduledAt, &j.StartedAt,
		&j.CompletedAt, &j.CreatedAt, &j.UpdatedAt,
	)
	return j, err
}

type EnqueueJobParams struct {
	JobType     string
	Payload     json.RawMessage
	Priority    int32
	MaxAttempts int32
	ScheduledAt time.Time
}

func (q *Queries) EnqueueJob(ctx context.Context, arg EnqueueJobParams) (Job, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO jobs (job_type, payload, priority, max_attempts, scheduled_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+jobColumns,
		arg.JobType, arg.Payload, arg.Priority, arg.MaxAttempts, arg.ScheduledAt,
	)
	return scanJob(row)
}

// DequeueJob claims the next runnable job. SKIP LOCKED lets concurrent
// workers dequeue without blocking each other; run inside a transaction and
// mark the job started before committing.
func (q *Queries) DequeueJob(ctx context.Context) (Job, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE status = 'pending' AND scheduled_at <= now()
		ORDER BY priority DESC, scheduled_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED`)
	return scanJob(row)
}

func (q *Queries) UpdateJobStarted(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'running', attempts = attempts + 1, started_at = now(), updated_at = now()
		WHERE id = $1`, id)
	return err
}

func (q *Queries) UpdateJobCompleted(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'completed', completed_at = now(), updated_at = now()
		WHERE id = $1`, id)
	return err
}

type UpdateJobFailedParams struct {
	ID           uuid.UUID
	ErrorMessage sql.NullString
	Permanent    bool
}

// UpdateJobFailed records a failure. Retryable failures under the attempt
// budget go back to pending with exponential backoff; everything else is
// marked failed.
func (q *Queries) UpdateJobFailed(ctx context.Context, arg UpdateJobFailedParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = CASE
				WHEN $3 OR attempts >= max_attempts THEN 'failed'
				ELSE 'pending'
			END,
			scheduled_at = CASE
				WHEN $3 OR attempts >= max_attempts THEN scheduled_at
				ELSE now() + (interval '30 seconds' * power(2, attempts))
			END,
			error_message = $2,
			completed_at = CASE WHEN $3 OR attempts >= max_attempts THEN now() ELSE NULL END,
			updated_at = now()
		WHERE id = $1`,
		arg.ID, arg.ErrorMessage, arg.Permanent)
	return err
}

// RecoverStaleJobs resets running jobs whose worker never finished, likely a
// crash, back to pending. Returns the number of jobs recovered.
func (q *Queries) RecoverStaleJobs(ctx context.Context, thresholdSeconds float64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'pending', started_at = NULL, updated_at = now()
		WHERE status = 'running'
		  AND started_at < now() - ($1 * interval '1 second')`,
		thresholdSeconds)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) GetJobByID(ctx context.Context, id uuid.UUID) (Job, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	return scanJob(row)
}

// DeleteCompletedJobs prunes completed jobs older than the given age.
func (q *Queries) DeleteCompletedJobs(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		DELETE FROM jobs WHERE status = 'completed' AND completed_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
