package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/hszk-dev/dashstream/internal/domain/model"
	"github.com/hszk-dev/dashstream/internal/domain/repository"
	"github.com/hszk-dev/dashstream/internal/transcoder"
)

// Encoder starts supervised encodes. *transcoder.Supervisor satisfies it.
type Encoder interface {
	Submit(req transcoder.EncodeRequest) (<-chan transcoder.Outcome, error)
}

// JobProcessor drives a job from spawn to terminal status: it hands the job to
// the encoder, records the outcome in the registry and history, and removes the
// output directory of failed jobs.
type JobProcessor struct {
	encoder  Encoder
	registry repository.JobRegistry
	history  repository.JobHistory // nil when history is disabled
	locks    repository.StreamLock // set on workers only
	logger   *slog.Logger
}

// NewJobProcessor creates a JobProcessor. history may be nil.
func NewJobProcessor(
	encoder Encoder,
	registry repository.JobRegistry,
	history repository.JobHistory,
	logger *slog.Logger,
) *JobProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobProcessor{
		encoder:  encoder,
		registry: registry,
		history:  history,
		logger:   logger,
	}
}

// SetStreamLock makes Process release the job's stream lock once the job has
// finished. Workers set it when the API reserves streams before publishing.
func (p *JobProcessor) SetStreamLock(locks repository.StreamLock) {
	p.locks = locks
}

// Start submits the job to the encoder. It fails without spawning anything when
// the encoder rejects the request.
// The output directory of a failed job is removed while the encoder still
// holds its manifest path, so a resubmission cannot lose its files to the cleanup.
func (p *JobProcessor) Start(job *model.Job) (<-chan transcoder.Outcome, error) {
	outcomes, err := p.encoder.Submit(transcoder.EncodeRequest{
		JobID:        job.ID,
		SourcePath:   job.SourcePath,
		ManifestPath: job.ManifestPath,
		OnFailure:    func() { p.removeOutput(job) },
	})
	if err != nil {
		return nil, fmt.Errorf("submit job %s: %w", job.ID, err)
	}
	return outcomes, nil
}

// Finish waits for the job's outcome and records it. It returns the terminal status.
func (p *JobProcessor) Finish(ctx context.Context, job *model.Job, outcomes <-chan transcoder.Outcome) model.Status {
	outcome, ok := <-outcomes
	if !ok {
		outcome = transcoder.Outcome{
			JobID:  job.ID,
			Status: model.StatusFailed,
			Err:    errors.New("encoder closed without an outcome"),
		}
	}

	if err := job.TransitionTo(outcome.Status); err != nil {
		p.logger.Warn("unexpected job outcome",
			slog.String("job_id", job.ID.String()),
			slog.String("from", job.Status.String()),
			slog.String("to", outcome.Status.String()),
		)
	}

	p.record(ctx, job.ID, outcome.Status)

	return outcome.Status
}

// Process runs a queued task to completion. The registry entry is expected to
// exist already (the API writes Pending before publishing).
// Returns an error when the job did not complete.
func (p *JobProcessor) Process(ctx context.Context, task repository.EncodeTask) error {
	job, err := model.NewJob(task.JobID, task.Name, task.SourcePath, task.ManifestPath)
	if err != nil {
		return fmt.Errorf("invalid encode task: %w", err)
	}

	if p.locks != nil {
		defer p.releaseLock(ctx, job)
	}

	outcomes, err := p.Start(job)
	if err != nil {
		// Only the source is ours; the directory may hold a running job's output.
		discardSource(job.SourcePath)
		_ = job.TransitionTo(model.StatusFailed)
		p.record(ctx, job.ID, model.StatusFailed)
		return err
	}

	if status := p.Finish(ctx, job, outcomes); status != model.StatusComplete {
		return fmt.Errorf("job %s finished with status %s", job.ID, status)
	}
	return nil
}

func (p *JobProcessor) record(ctx context.Context, id uuid.UUID, status model.Status) {
	logger := p.logger.With(slog.String("job_id", id.String()), slog.String("status", status.String()))

	if err := p.registry.Set(ctx, id, status); err != nil {
		logger.Error("failed to record job status", slog.String("error", err.Error()))
	}

	if p.history != nil {
		if err := p.history.UpdateStatus(ctx, id, status); err != nil {
			logger.Warn("failed to update job history", slog.String("error", err.Error()))
		}
	}

	logger.Info("job finished")
}

func (p *JobProcessor) releaseLock(ctx context.Context, job *model.Job) {
	if err := p.locks.Release(ctx, job.Name, job.ID); err != nil {
		p.logger.Warn("failed to release stream lock",
			slog.String("job_id", job.ID.String()),
			slog.String("stream", job.Name),
			slog.String("error", err.Error()),
		)
	}
}

func (p *JobProcessor) removeOutput(job *model.Job) {
	dir := job.OutputDir()
	if err := os.RemoveAll(dir); err != nil {
		p.logger.Warn("failed to remove output of failed job",
			slog.String("job_id", job.ID.String()),
			slog.String("dir", dir),
			slog.String("error", err.Error()),
		)
	}
}
