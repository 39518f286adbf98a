package repository

import (
	"context"
	"io"
	"time"
)

// ObjectStorage defines the interface for object storage operations.
// It is used to ingest large sources uploaded directly by clients.
// Implementations should be provided by the infrastructure layer (e.g., MinIO, S3).
type ObjectStorage interface {
	// GeneratePresignedUploadURL creates a presigned URL for direct client upload.
	// The URL is valid for the specified duration.
	// key is the object path within the bucket (e.g., "sources/{upload_id}/clip.mp4").
	GeneratePresignedUploadURL(ctx context.Context, key string, expiry time.Duration) (string, error)

	// Download retrieves an object from the storage.
	// Returns ErrObjectNotFound if the key does not exist.
	// Caller is responsible for closing the returned ReadCloser.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object from the storage.
	Delete(ctx context.Context, key string) error
}
