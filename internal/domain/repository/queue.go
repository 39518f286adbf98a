package repository

import (
	"context"

	"github.com/google/uuid"
)

// EncodeTask is the message handed to a worker when jobs are dispatched over a queue.
// Source and manifest paths must resolve on the worker (shared stream volume).
type EncodeTask struct {
	JobID        uuid.UUID `json:"job_id"`
	Name         string    `json:"name"`
	SourcePath   string    `json:"source_path"`
	ManifestPath string    `json:"manifest_path"`
}

// MessageQueue defines the interface for message queue operations.
// Implementations should be provided by the infrastructure layer (e.g., RabbitMQ).
type MessageQueue interface {
	// PublishEncodeTask sends an encode task to the queue.
	// Used by the API server when jobs are dispatched to workers.
	PublishEncodeTask(ctx context.Context, task EncodeTask) error

	// ConsumeEncodeTasks starts consuming encode tasks from the queue.
	// The handler function is called for each received task.
	// Blocks until ctx is cancelled or the delivery channel closes.
	// Used by the worker service.
	ConsumeEncodeTasks(ctx context.Context, handler func(task EncodeTask) error) error

	// Close gracefully closes the connection to the message queue.
	Close() error
}
