package handler

import (
	"context"

	"github.com/google/uuid"

	"github.com/hszk-dev/dashstream/internal/domain/model"
	"github.com/hszk-dev/dashstream/internal/usecase"
)

// mockEncodeService provides a configurable mock for usecase.EncodeService.
type mockEncodeService struct {
	submitFn       func(ctx context.Context, input usecase.SubmitInput) (*model.Job, error)
	submitObjectFn func(ctx context.Context, input usecase.SubmitObjectInput) (*model.Job, error)
	createUploadFn func(ctx context.Context, input usecase.CreateUploadInput) (*usecase.CreateUploadOutput, error)
	statusFn       func(ctx context.Context, id uuid.UUID) (model.Status, error)
	listStreamsFn  func(ctx context.Context) ([]string, error)
	recentJobsFn   func(ctx context.Context, limit int) ([]*model.Job, error)
}

func (m *mockEncodeService) Submit(ctx context.Context, input usecase.SubmitInput) (*model.Job, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, input)
	}
	return nil, nil
}

func (m *mockEncodeService) SubmitObject(ctx context.Context, input usecase.SubmitObjectInput) (*model.Job, error) {
	if m.submitObjectFn != nil {
		return m.submitObjectFn(ctx, input)
	}
	return nil, nil
}

func (m *mockEncodeService) CreateUpload(ctx context.Context, input usecase.CreateUploadInput) (*usecase.CreateUploadOutput, error) {
	if m.createUploadFn != nil {
		return m.createUploadFn(ctx, input)
	}
	return nil, nil
}

func (m *mockEncodeService) Status(ctx context.Context, id uuid.UUID) (model.Status, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx, id)
	}
	return "", nil
}

func (m *mockEncodeService) ListStreams(ctx context.Context) ([]string, error) {
	if m.listStreamsFn != nil {
		return m.listStreamsFn(ctx)
	}
	return nil, nil
}

func (m *mockEncodeService) RecentJobs(ctx context.Context, limit int) ([]*model.Job, error) {
	if m.recentJobsFn != nil {
		return m.recentJobsFn(ctx, limit)
	}
	return nil, nil
}

// pendingJob builds the job a successful submission returns.
func pendingJob(name string) *model.Job {
	job, _ := model.NewJob(uuid.New(), name, "/streams/"+name+"/src.mp4", "/streams/"+name+"/"+model.ManifestFileName)
	return job
}
