package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hszk-dev/dashstream/internal/domain/model"
	"github.com/hszk-dev/dashstream/internal/domain/repository"
	"github.com/hszk-dev/dashstream/internal/transcoder"
)

// mockJobRegistry provides a configurable mock for JobRegistry.
// Without overrides it behaves as a plain map.
type mockJobRegistry struct {
	setFn   func(ctx context.Context, id uuid.UUID, status model.Status) error
	getFn   func(ctx context.Context, id uuid.UUID) (model.Status, error)
	evictFn func(ctx context.Context, id uuid.UUID) error

	mu       sync.Mutex
	statuses map[uuid.UUID]model.Status
	evicted  []uuid.UUID
}

func (m *mockJobRegistry) Set(ctx context.Context, id uuid.UUID, status model.Status) error {
	if m.setFn != nil {
		return m.setFn(ctx, id, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statuses == nil {
		m.statuses = make(map[uuid.UUID]model.Status)
	}
	m.statuses[id] = status
	return nil
}

func (m *mockJobRegistry) Get(ctx context.Context, id uuid.UUID) (model.Status, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.statuses[id]
	if !ok {
		return "", repository.ErrJobNotFound
	}
	return status, nil
}

func (m *mockJobRegistry) Evict(ctx context.Context, id uuid.UUID) error {
	if m.evictFn != nil {
		return m.evictFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, id)
	m.evicted = append(m.evicted, id)
	return nil
}

func (m *mockJobRegistry) status(id uuid.UUID) model.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[id]
}

// mockJobHistory provides a configurable mock for JobHistory.
type mockJobHistory struct {
	createFn       func(ctx context.Context, job *model.Job) error
	updateStatusFn func(ctx context.Context, id uuid.UUID, status model.Status) error
	listRecentFn   func(ctx context.Context, limit int) ([]*model.Job, error)
}

func (m *mockJobHistory) Create(ctx context.Context, job *model.Job) error {
	if m.createFn != nil {
		return m.createFn(ctx, job)
	}
	return nil
}

func (m *mockJobHistory) UpdateStatus(ctx context.Context, id uuid.UUID, status model.Status) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return nil
}

func (m *mockJobHistory) ListRecent(ctx context.Context, limit int) ([]*model.Job, error) {
	if m.listRecentFn != nil {
		return m.listRecentFn(ctx, limit)
	}
	return nil, nil
}

// mockObjectStorage provides a configurable mock for ObjectStorage.
type mockObjectStorage struct {
	generatePresignedUploadURLFn func(ctx context.Context, key string, expiry time.Duration) (string, error)
	downloadFn                   func(ctx context.Context, key string) (io.ReadCloser, error)
	deleteFn                     func(ctx context.Context, key string) error
}

func (m *mockObjectStorage) GeneratePresignedUploadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if m.generatePresignedUploadURLFn != nil {
		return m.generatePresignedUploadURLFn(ctx, key, expiry)
	}
	return "http://example.com/upload", nil
}

func (m *mockObjectStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if m.downloadFn != nil {
		return m.downloadFn(ctx, key)
	}
	return nil, nil
}

func (m *mockObjectStorage) Delete(ctx context.Context, key string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, key)
	}
	return nil
}

// mockMessageQueue provides a configurable mock for MessageQueue.
type mockMessageQueue struct {
	publishEncodeTaskFn  func(ctx context.Context, task repository.EncodeTask) error
	consumeEncodeTasksFn func(ctx context.Context, handler func(task repository.EncodeTask) error) error
}

func (m *mockMessageQueue) PublishEncodeTask(ctx context.Context, task repository.EncodeTask) error {
	if m.publishEncodeTaskFn != nil {
		return m.publishEncodeTaskFn(ctx, task)
	}
	return nil
}

func (m *mockMessageQueue) ConsumeEncodeTasks(ctx context.Context, handler func(task repository.EncodeTask) error) error {
	if m.consumeEncodeTasksFn != nil {
		return m.consumeEncodeTasksFn(ctx, handler)
	}
	return nil
}

func (m *mockMessageQueue) Close() error {
	return nil
}

// mockEncoder provides a configurable mock for Encoder.
// Without overrides every job completes immediately.
type mockEncoder struct {
	submitFn func(req transcoder.EncodeRequest) (<-chan transcoder.Outcome, error)
}

func (m *mockEncoder) Submit(req transcoder.EncodeRequest) (<-chan transcoder.Outcome, error) {
	if m.submitFn != nil {
		return m.submitFn(req)
	}
	return outcomeOf(req.JobID, model.StatusComplete), nil
}

// mockRunner provides a configurable mock for transcoder.Runner.
type mockRunner struct {
	runFn func(ctx context.Context, args []string, logger *slog.Logger) error
}

func (m *mockRunner) Run(ctx context.Context, args []string, logger *slog.Logger) error {
	if m.runFn != nil {
		return m.runFn(ctx, args, logger)
	}
	return nil
}

// silentProber reports every source as having no audio.
type silentProber struct{}

func (silentProber) HasAudio(ctx context.Context, sourcePath string) bool {
	return false
}

// mockDispatcher provides a configurable mock for Dispatcher.
type mockDispatcher struct {
	dispatchFn func(ctx context.Context, job *model.Job) error
}

func (m *mockDispatcher) Dispatch(ctx context.Context, job *model.Job) error {
	if m.dispatchFn != nil {
		return m.dispatchFn(ctx, job)
	}
	return nil
}

func (m *mockDispatcher) Mode() string {
	return "mock"
}

// mockStreamLock provides a configurable mock for StreamLock.
// Without overrides it keeps an in-process map of held streams.
type mockStreamLock struct {
	mu        sync.Mutex
	held      map[string]uuid.UUID
	releases  []string
	acquireFn func(ctx context.Context, name string, jobID uuid.UUID) error
}

func (m *mockStreamLock) Acquire(ctx context.Context, name string, jobID uuid.UUID) error {
	if m.acquireFn != nil {
		return m.acquireFn(ctx, name, jobID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held == nil {
		m.held = make(map[string]uuid.UUID)
	}
	if _, ok := m.held[name]; ok {
		return repository.ErrStreamLocked
	}
	m.held[name] = jobID
	return nil
}

func (m *mockStreamLock) Release(ctx context.Context, name string, jobID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases = append(m.releases, name)
	if m.held[name] == jobID {
		delete(m.held, name)
	}
	return nil
}

func (m *mockStreamLock) isHeld(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.held[name]
	return ok
}

// finishWith reports status for req the way the supervisor does, running the
// failure hook before the outcome is delivered.
func finishWith(req transcoder.EncodeRequest, status model.Status) <-chan transcoder.Outcome {
	if status == model.StatusFailed && req.OnFailure != nil {
		req.OnFailure()
	}
	return outcomeOf(req.JobID, status)
}

// outcomeOf returns a closed channel holding a single outcome.
func outcomeOf(id uuid.UUID, status model.Status) <-chan transcoder.Outcome {
	ch := make(chan transcoder.Outcome, 1)
	ch <- transcoder.Outcome{JobID: id, Status: status}
	close(ch)
	return ch
}
