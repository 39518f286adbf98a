package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/hszk-dev/dashstream/internal/domain/model"
)

// JobRegistry tracks the status of encode jobs for polling clients.
// Implementations should be provided by the infrastructure layer (in-memory or Redis).
type JobRegistry interface {
	// Set records status for the job.
	// Returns model.ErrInvalidTransition if the job is already in a terminal state.
	// Terminal statuses start the retention window after which the entry is evicted.
	Set(ctx context.Context, id uuid.UUID, status model.Status) error

	// Get returns the current status of the job.
	// Returns ErrJobNotFound if the job is unknown or has been evicted.
	Get(ctx context.Context, id uuid.UUID) (model.Status, error)

	// Evict removes the job immediately. Evicting an unknown job is not an error.
	Evict(ctx context.Context, id uuid.UUID) error
}

// JobHistory persists job records beyond the registry retention window.
// Implementations should be provided by the infrastructure layer (e.g., PostgreSQL).
type JobHistory interface {
	// Create persists a new job record.
	// Returns ErrDuplicateJob if a record with the same ID exists.
	Create(ctx context.Context, job *model.Job) error

	// UpdateStatus updates only the status of a job record.
	// Returns ErrJobNotFound if the record does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.Status) error

	// ListRecent returns at most limit records, newest first.
	ListRecent(ctx context.Context, limit int) ([]*model.Job, error)
}

// StreamLock reserves a stream name across every process that can run its
// encode, so two jobs never write the same output directory.
// Implementations should be provided by the infrastructure layer (e.g., Redis).
type StreamLock interface {
	// Acquire reserves name for the job.
	// Returns ErrStreamLocked if another job holds it.
	Acquire(ctx context.Context, name string, jobID uuid.UUID) error

	// Release frees name if jobID still holds it. Releasing a lock held by
	// another job, or one that has expired, is not an error.
	Release(ctx context.Context, name string, jobID uuid.UUID) error
}
