package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hszk-dev/dashstream/internal/domain/model"
	"github.com/hszk-dev/dashstream/internal/domain/repository"
	"github.com/hszk-dev/dashstream/internal/infrastructure/metrics"
)

// DBTX is an interface that abstracts pgxpool.Pool and pgx.Tx for testability.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// schema creates the job history table. Safe to run on every start.
const schema = `
	CREATE TABLE IF NOT EXISTS encode_jobs (
		id            UUID PRIMARY KEY,
		name          TEXT NOT NULL,
		source_path   TEXT NOT NULL,
		manifest_path TEXT NOT NULL,
		status        TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS encode_jobs_created_at_idx ON encode_jobs (created_at DESC);
`

// JobRepository implements repository.JobHistory using PostgreSQL.
type JobRepository struct {
	db DBTX
}

// NewJobRepository creates a new JobRepository instance.
func NewJobRepository(db DBTX) *JobRepository {
	return &JobRepository{db: db}
}

// EnsureSchema creates the encode_jobs table if it does not exist.
func (r *JobRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Create persists a new job record.
func (r *JobRepository) Create(ctx context.Context, job *model.Job) error {
	const query = `
		INSERT INTO encode_jobs (id, name, source_path, manifest_path, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryInsert, metrics.TableEncodeJobs).Inc()

	_, err := r.db.Exec(ctx, query,
		job.ID,
		job.Name,
		job.SourcePath,
		job.ManifestPath,
		job.Status.String(),
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrDuplicateJob
		}
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// UpdateStatus updates only the status field of a job.
func (r *JobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.Status) error {
	const query = `
		UPDATE encode_jobs
		SET status = $2, updated_at = $3
		WHERE id = $1
	`

	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryUpdate, metrics.TableEncodeJobs).Inc()

	tag, err := r.db.Exec(ctx, query, id, status.String(), time.Now())
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrJobNotFound
	}

	return nil
}

// ListRecent returns at most limit jobs, newest first.
func (r *JobRepository) ListRecent(ctx context.Context, limit int) ([]*model.Job, error) {
	const query = `
		SELECT id, name, source_path, manifest_path, status, created_at, updated_at
		FROM encode_jobs
		ORDER BY created_at DESC
		LIMIT $1
	`

	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQuerySelect, metrics.TableEncodeJobs).Inc()

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*model.Job, 0, limit)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}

	return jobs, nil
}

// scanJob scans a single row into a Job model.
func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		job    model.Job
		status string
	)

	err := row.Scan(
		&job.ID,
		&job.Name,
		&job.SourcePath,
		&job.ManifestPath,
		&status,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Status = model.Status(status)
	return &job, nil
}

// Compile-time verification that JobRepository implements repository.JobHistory.
var _ repository.JobHistory = (*JobRepository)(nil)
