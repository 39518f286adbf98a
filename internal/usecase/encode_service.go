package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hszk-dev/dashstream/internal/domain/model"
	"github.com/hszk-dev/dashstream/internal/domain/repository"
	"github.com/hszk-dev/dashstream/internal/infrastructure/metrics"
)

var (
	// ErrMissingSource is returned when a submission carries no source file.
	ErrMissingSource = errors.New("source file is required")

	// ErrSourceTooLarge is returned when a source exceeds the configured size limit.
	ErrSourceTooLarge = errors.New("source file exceeds maximum size")

	// ErrEmptyFileName is returned when an upload is requested without a file name.
	ErrEmptyFileName = errors.New("file name cannot be empty")

	// ErrObjectStorageDisabled is returned by object-storage operations when no storage is configured.
	ErrObjectStorageDisabled = errors.New("object storage is not enabled")

	// ErrHistoryDisabled is returned by history queries when no history store is configured.
	ErrHistoryDisabled = errors.New("job history is not enabled")
)

const (
	defaultRecentJobs = 20
	maxRecentJobs     = 100
)

// sourceExtPattern limits kept source extensions to short alphanumeric suffixes.
var sourceExtPattern = regexp.MustCompile(`^\.[A-Za-z0-9]{1,10}$`)

// SubmitInput contains the input parameters for a direct upload.
type SubmitInput struct {
	Name     string
	FileName string
	Source   io.Reader
}

// SubmitObjectInput contains the input parameters for encoding a previously uploaded object.
type SubmitObjectInput struct {
	Name string
	Key  string
}

// CreateUploadInput contains the input parameters for requesting an upload URL.
type CreateUploadInput struct {
	FileName string
}

// CreateUploadOutput contains the object key and presigned URL for a direct upload.
type CreateUploadOutput struct {
	Key       string
	UploadURL string
}

// EncodeService defines the interface for encode job operations.
type EncodeService interface {
	// Submit stores the uploaded source under the stream directory and dispatches an encode.
	// The returned job is Pending.
	Submit(ctx context.Context, input SubmitInput) (*model.Job, error)

	// SubmitObject downloads a source from object storage and dispatches an encode.
	SubmitObject(ctx context.Context, input SubmitObjectInput) (*model.Job, error)

	// CreateUpload returns a presigned URL the client can PUT a large source to.
	CreateUpload(ctx context.Context, input CreateUploadInput) (*CreateUploadOutput, error)

	// Status returns the job's current status.
	// Returns repository.ErrJobNotFound for unknown and expired jobs alike.
	Status(ctx context.Context, id uuid.UUID) (model.Status, error)

	// ListStreams returns the names of all stream directories.
	ListStreams(ctx context.Context) ([]string, error)

	// RecentJobs returns the newest job records from history.
	RecentJobs(ctx context.Context, limit int) ([]*model.Job, error)
}

// EncodeServiceConfig holds configuration for EncodeService.
type EncodeServiceConfig struct {
	// StreamDir is the root under which each stream gets its own directory.
	StreamDir string
	// MaxSourceBytes caps the size of a stored source. Zero disables the cap.
	MaxSourceBytes int64
	// UploadURLExpiry is how long presigned upload URLs stay valid.
	UploadURLExpiry time.Duration
}

// DefaultEncodeServiceConfig returns the default configuration.
func DefaultEncodeServiceConfig() EncodeServiceConfig {
	return EncodeServiceConfig{
		StreamDir:       "streams",
		MaxSourceBytes:  5 << 30,
		UploadURLExpiry: 15 * time.Minute,
	}
}

type encodeService struct {
	registry   repository.JobRegistry
	history    repository.JobHistory    // optional
	storage    repository.ObjectStorage // optional
	dispatcher Dispatcher
	logger     *slog.Logger

	streamDir       string
	maxSourceBytes  int64
	uploadURLExpiry time.Duration
}

// NewEncodeService creates a new EncodeService instance.
// history and storage may be nil when those features are disabled.
func NewEncodeService(
	registry repository.JobRegistry,
	history repository.JobHistory,
	storage repository.ObjectStorage,
	dispatcher Dispatcher,
	cfg EncodeServiceConfig,
	logger *slog.Logger,
) EncodeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &encodeService{
		registry:        registry,
		history:         history,
		storage:         storage,
		dispatcher:      dispatcher,
		logger:          logger,
		streamDir:       cfg.StreamDir,
		maxSourceBytes:  cfg.MaxSourceBytes,
		uploadURLExpiry: cfg.UploadURLExpiry,
	}
}

// Submit stores the upload as <stream dir>/<name>/<job id><ext> and dispatches it.
func (s *encodeService) Submit(ctx context.Context, input SubmitInput) (*model.Job, error) {
	if err := model.ValidateStreamName(input.Name); err != nil {
		return nil, err
	}
	if input.Source == nil {
		return nil, ErrMissingSource
	}

	return s.submit(ctx, input.Name, input.FileName, input.Source)
}

// SubmitObject copies the object into the stream directory and dispatches it.
// The object is deleted once the job has been handed off.
func (s *encodeService) SubmitObject(ctx context.Context, input SubmitObjectInput) (*model.Job, error) {
	if s.storage == nil {
		return nil, ErrObjectStorageDisabled
	}
	if err := model.ValidateStreamName(input.Name); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Key) == "" {
		return nil, ErrMissingSource
	}

	reader, err := s.storage.Download(ctx, input.Key)
	if err != nil {
		return nil, fmt.Errorf("download source: %w", err)
	}
	defer func() { _ = reader.Close() }()

	job, err := s.submit(ctx, input.Name, path.Base(input.Key), reader)
	if err != nil {
		return nil, err
	}

	if err := s.storage.Delete(ctx, input.Key); err != nil {
		s.logger.Warn("failed to delete ingested object",
			slog.String("job_id", job.ID.String()),
			slog.String("key", input.Key),
			slog.String("error", err.Error()),
		)
	}

	return job, nil
}

func (s *encodeService) submit(ctx context.Context, name, fileName string, src io.Reader) (*model.Job, error) {
	id := uuid.New()
	dir := filepath.Join(s.streamDir, name)
	sourcePath := filepath.Join(dir, id.String()+sourceExt(fileName))
	manifestPath := filepath.Join(dir, model.ManifestFileName)

	job, err := model.NewJob(id, name, sourcePath, manifestPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create stream directory: %w", err)
	}
	if err := s.storeSource(sourcePath, src); err != nil {
		discardSource(sourcePath)
		return nil, err
	}

	if err := s.registry.Set(ctx, id, model.StatusPending); err != nil {
		discardSource(sourcePath)
		return nil, fmt.Errorf("register job: %w", err)
	}

	if s.history != nil {
		if err := s.history.Create(ctx, job); err != nil {
			s.logger.Warn("failed to record job history",
				slog.String("job_id", id.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		_ = s.registry.Evict(ctx, id)
		discardSource(sourcePath)
		if s.history != nil {
			_ = s.history.UpdateStatus(ctx, id, model.StatusFailed)
		}
		return nil, fmt.Errorf("dispatch job: %w", err)
	}

	metrics.JobsSubmittedTotal.WithLabelValues(s.dispatcher.Mode()).Inc()
	s.logger.Info("job submitted",
		slog.String("job_id", id.String()),
		slog.String("stream", name),
		slog.String("dispatch", s.dispatcher.Mode()),
	)

	return job, nil
}

func (s *encodeService) storeSource(dst string, src io.Reader) error {
	file, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("create source file: %w", err)
	}

	if s.maxSourceBytes > 0 {
		src = io.LimitReader(src, s.maxSourceBytes+1)
	}

	n, err := io.Copy(file, src)
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("write source file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close source file: %w", err)
	}

	if s.maxSourceBytes > 0 && n > s.maxSourceBytes {
		return ErrSourceTooLarge
	}
	if n == 0 {
		return ErrMissingSource
	}
	return nil
}

// CreateUpload generates a presigned URL under sources/{upload_id}/{file name}.
func (s *encodeService) CreateUpload(ctx context.Context, input CreateUploadInput) (*CreateUploadOutput, error) {
	if s.storage == nil {
		return nil, ErrObjectStorageDisabled
	}

	fileName := path.Base(strings.ReplaceAll(input.FileName, `\`, "/"))
	if strings.TrimSpace(input.FileName) == "" || fileName == "." || fileName == "/" {
		return nil, ErrEmptyFileName
	}

	key := path.Join("sources", uuid.NewString(), fileName)

	uploadURL, err := s.storage.GeneratePresignedUploadURL(ctx, key, s.uploadURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("generate presigned upload URL: %w", err)
	}

	return &CreateUploadOutput{
		Key:       key,
		UploadURL: uploadURL,
	}, nil
}

// Status returns the job's current status from the registry.
func (s *encodeService) Status(ctx context.Context, id uuid.UUID) (model.Status, error) {
	return s.registry.Get(ctx, id)
}

// ListStreams returns the stream directory names in lexical order.
// A missing stream root yields an empty list.
func (s *encodeService) ListStreams(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.streamDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read stream directory: %w", err)
	}

	streams := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			streams = append(streams, entry.Name())
		}
	}
	return streams, nil
}

// RecentJobs returns up to limit history records, newest first.
// Non-positive limits use the default; limits above the maximum are clamped.
func (s *encodeService) RecentJobs(ctx context.Context, limit int) ([]*model.Job, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}

	switch {
	case limit <= 0:
		limit = defaultRecentJobs
	case limit > maxRecentJobs:
		limit = maxRecentJobs
	}

	return s.history.ListRecent(ctx, limit)
}

// discardSource removes a source that will never be encoded, and its stream
// directory when nothing else lives there.
func discardSource(sourcePath string) {
	_ = os.Remove(sourcePath)
	_ = os.Remove(filepath.Dir(sourcePath))
}

// sourceExt keeps the upload's extension when it looks like one, so the
// transcoder can use it as a demuxer hint.
func sourceExt(fileName string) string {
	ext := filepath.Ext(fileName)
	if !sourceExtPattern.MatchString(ext) {
		return ""
	}
	return strings.ToLower(ext)
}
