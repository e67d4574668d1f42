package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// Job statuses.
const (
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

// Job is one featurize request processed by the worker.
type Job struct {
	ID         uuid.UUID
	Status     string
	Molecules  int
	Kept       int
	Artifact   string
	Error      string
	CreatedAt  time.Time
	FinishedAt *time.Time
}

// JobRepository records worker jobs in featurize_jobs.
type JobRepository struct {
	conn *Connection
}

// NewJobRepository returns a repository over conn.
func NewJobRepository(conn *Connection) *JobRepository {
	return &JobRepository{conn: conn}
}

// Start inserts a running job.  Restarting a known job resets it.
func (r *JobRepository) Start(ctx context.Context, id uuid.UUID, molecules int) error {
	_, err := r.conn.DB().ExecContext(ctx,
		`INSERT INTO featurize_jobs (id, status, molecules) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, molecules = EXCLUDED.molecules, error = NULL, finished_at = NULL`,
		id, JobStatusRunning, molecules)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to record job start").WithDetail(id.String())
	}
	return nil
}

// Finish marks a job succeeded or failed.
func (r *JobRepository) Finish(ctx context.Context, id uuid.UUID, kept int, artifact string, jobErr error) error {
	status, msg := JobStatusSucceeded, sql.NullString{}
	if jobErr != nil {
		status = JobStatusFailed
		msg = sql.NullString{String: jobErr.Error(), Valid: true}
	}
	res, err := r.conn.DB().ExecContext(ctx,
		`UPDATE featurize_jobs SET status = $2, kept = $3, artifact = $4, error = $5, finished_at = now() WHERE id = $1`,
		id, status, kept, sql.NullString{String: artifact, Valid: artifact != ""}, msg)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to record job result").WithDetail(id.String())
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("job not found").WithDetail(id.String())
	}
	return nil
}

// Get loads a job.
func (r *JobRepository) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	var (
		j        Job
		artifact sql.NullString
		msg      sql.NullString
		finished sql.NullTime
	)
	err := r.conn.DB().QueryRowContext(ctx,
		`SELECT id, status, molecules, kept, artifact, error, created_at, finished_at FROM featurize_jobs WHERE id = $1`, id).
		Scan(&j.ID, &j.Status, &j.Molecules, &j.Kept, &artifact, &msg, &j.CreatedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("job not found").WithDetail(id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load job")
	}
	j.Artifact = artifact.String
	j.Error = msg.String
	if finished.Valid {
		j.FinishedAt = &finished.Time
	}
	return &j, nil
}

//Personal.AI order the ending
