package repository

import "errors"

var (
	// ErrJobNotFound is returned when a job id is unknown or its entry has expired.
	// Callers cannot distinguish the two cases.
	ErrJobNotFound = errors.New("job not found")

	// ErrDuplicateJob is returned when attempting to record a job that already exists.
	ErrDuplicateJob = errors.New("job already exists")

	// ErrStreamLocked is returned when another job holds the stream lock.
	ErrStreamLocked = errors.New("stream locked")

	// ErrObjectNotFound is returned when an object key does not exist in storage.
	ErrObjectNotFound = errors.New("object not found")

	// ErrBucketNotFound is returned when the configured bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")
)
