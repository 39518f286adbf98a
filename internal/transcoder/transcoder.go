package transcoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hszk-dev/dashstream/internal/domain/model"
)

var (
	// ErrInvalidLadder is returned when a ladder is empty or has an invalid rendition.
	ErrInvalidLadder = errors.New("invalid rendition ladder")

	// ErrInvalidRequest is returned when an encode request is missing required fields.
	ErrInvalidRequest = errors.New("invalid encode request")

	// ErrManifestInUse is returned when another running job already writes the manifest path.
	ErrManifestInUse = errors.New("manifest path is in use by a running job")

	// ErrSupervisorClosed is returned when submitting after Shutdown.
	ErrSupervisorClosed = errors.New("supervisor is shut down")

	// ErrStart is returned when the transcoder process could not be spawned.
	ErrStart = errors.New("transcoder failed to start")

	// ErrJobTimeout is returned when a job exceeds the maximum job duration and is killed.
	ErrJobTimeout = errors.New("transcoder exceeded maximum job duration")
)

// ExitError reports a transcoder process that exited with a non-zero code.
type ExitError struct {
	// Code is the process exit code, -1 when terminated by a signal.
	Code int
	// Tail holds the last lines of combined output for diagnostics.
	Tail []string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("transcoder exited with code %d", e.Code)
}

// Runner executes the external transcoder with a prepared argument list.
type Runner interface {
	// Run spawns the transcoder and blocks until it exits.
	// Combined stdout/stderr is streamed to logger line by line.
	//
	// Returns:
	//   - nil when the process exits with code 0
	//   - an error wrapping ErrStart when the process cannot be spawned
	//   - *ExitError when the process exits with a non-zero code
	Run(ctx context.Context, args []string, logger *slog.Logger) error
}

// AudioProber reports whether a media file has an audio stream.
type AudioProber interface {
	// HasAudio returns true iff at least one audio stream is found.
	// Probe failures are reported as false.
	HasAudio(ctx context.Context, sourcePath string) bool
}

// EncodeRequest identifies a job and its input/output locations.
type EncodeRequest struct {
	JobID        uuid.UUID
	SourcePath   string
	ManifestPath string

	// OnFailure, if set, runs after a failed transcoder has exited and before
	// the manifest path is released, so it may clean up the output directory
	// without racing a job that reuses the path.
	OnFailure func()
}

// Outcome is the single terminal result of a supervised job.
type Outcome struct {
	JobID uuid.UUID
	// Status is StatusComplete or StatusFailed.
	Status model.Status
	// Err explains a Failed outcome; nil when Complete.
	Err error
	// HasAudio reports whether an audio adaptation set was declared.
	HasAudio bool
	Duration time.Duration
}
