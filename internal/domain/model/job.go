package model

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of an encode job.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusComplete Status = "Complete"
	StatusFailed   Status = "Failed"
)

// Valid status transitions:
// Pending -> Complete
//        \-> Failed
var validTransitions = map[Status][]Status{
	StatusPending:  {StatusComplete, StatusFailed},
	StatusComplete: {},
	StatusFailed:   {},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusComplete, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}

func (s Status) CanTransitionTo(next Status) bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}
	for _, status := range allowed {
		if status == next {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// Job is one encode of an uploaded source into a DASH package.
type Job struct {
	ID           uuid.UUID
	Name         string
	SourcePath   string
	ManifestPath string
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var (
	ErrInvalidJobID      = errors.New("job ID cannot be nil")
	ErrEmptyStreamName   = errors.New("stream name cannot be empty")
	ErrInvalidStreamName = errors.New("stream name must be a single path segment")
	ErrStreamNameTooLong = errors.New("stream name exceeds maximum length of 255 characters")
	ErrEmptySourcePath   = errors.New("source path cannot be empty")
	ErrEmptyManifestPath = errors.New("manifest path cannot be empty")
	ErrInvalidTransition = errors.New("invalid status transition")
)

const maxStreamNameLength = 255

// ManifestFileName is the fixed name of the DASH manifest inside a stream directory.
const ManifestFileName = "manifest.mpd"

// ValidateStreamName checks that name can be used as a directory under the stream root.
func ValidateStreamName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyStreamName
	}
	if len(name) > maxStreamNameLength {
		return ErrStreamNameTooLong
	}
	if name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return ErrInvalidStreamName
	}
	if strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return ErrInvalidStreamName
	}
	return nil
}

// NewJob creates a new Job in Pending status.
func NewJob(id uuid.UUID, name, sourcePath, manifestPath string) (*Job, error) {
	if id == uuid.Nil {
		return nil, ErrInvalidJobID
	}
	if err := ValidateStreamName(name); err != nil {
		return nil, err
	}
	if sourcePath == "" {
		return nil, ErrEmptySourcePath
	}
	if manifestPath == "" {
		return nil, ErrEmptyManifestPath
	}

	now := time.Now()
	return &Job{
		ID:           id,
		Name:         name,
		SourcePath:   sourcePath,
		ManifestPath: manifestPath,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// TransitionTo attempts to change the job status.
// Returns error if the transition is not allowed.
func (j *Job) TransitionTo(next Status) error {
	if !next.IsValid() {
		return ErrInvalidTransition
	}
	if !j.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	j.Status = next
	j.UpdatedAt = time.Now()
	return nil
}

// OutputDir returns the stream directory holding the manifest and segments.
func (j *Job) OutputDir() string {
	return filepath.Dir(j.ManifestPath)
}
