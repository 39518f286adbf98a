package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hszk-dev/dashstream/internal/domain/model"
	"github.com/hszk-dev/dashstream/internal/domain/repository"
	"github.com/hszk-dev/dashstream/internal/infrastructure/metrics"
	"github.com/hszk-dev/dashstream/internal/transcoder"
)

// Dispatcher hands an accepted job to whatever runs the encode.
type Dispatcher interface {
	// Dispatch returns once the job has been handed off; it does not wait for the encode.
	// A returned error means the job will never run.
	Dispatch(ctx context.Context, job *model.Job) error

	// Mode names the dispatch path for metrics and logs.
	Mode() string
}

// LocalDispatcher runs jobs on the in-process supervisor.
type LocalDispatcher struct {
	processor *JobProcessor
	wg        sync.WaitGroup
}

// NewLocalDispatcher creates a dispatcher that encodes in this process.
func NewLocalDispatcher(processor *JobProcessor) *LocalDispatcher {
	return &LocalDispatcher{processor: processor}
}

// Dispatch starts the encode synchronously, so a busy manifest path or a closed
// supervisor fails the caller, then records the outcome in the background.
func (d *LocalDispatcher) Dispatch(ctx context.Context, job *model.Job) error {
	outcomes, err := d.processor.Start(job)
	if err != nil {
		return err
	}

	// The job outlives the request that submitted it.
	finishCtx := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.processor.Finish(finishCtx, job, outcomes)
	}()

	return nil
}

// Mode implements Dispatcher.
func (d *LocalDispatcher) Mode() string {
	return metrics.DispatchLocal
}

// Wait blocks until every dispatched job has recorded its outcome.
// Call it after the supervisor has shut down.
func (d *LocalDispatcher) Wait() {
	d.wg.Wait()
}

// QueueDispatcher publishes jobs for workers to pick up.
type QueueDispatcher struct {
	queue repository.MessageQueue
	locks repository.StreamLock // nil disables the cluster-wide guard
}

// NewQueueDispatcher creates a dispatcher that publishes encode tasks.
// locks reserves each stream until the worker running its job releases it.
func NewQueueDispatcher(queue repository.MessageQueue, locks repository.StreamLock) *QueueDispatcher {
	return &QueueDispatcher{queue: queue, locks: locks}
}

// Dispatch reserves the stream and publishes the job as an encode task.
// A stream held by another job fails with transcoder.ErrManifestInUse, the
// same as a busy manifest path in local mode.
func (d *QueueDispatcher) Dispatch(ctx context.Context, job *model.Job) error {
	if d.locks != nil {
		if err := d.locks.Acquire(ctx, job.Name, job.ID); err != nil {
			if errors.Is(err, repository.ErrStreamLocked) {
				return fmt.Errorf("%w: stream %s", transcoder.ErrManifestInUse, job.Name)
			}
			return fmt.Errorf("acquire stream lock: %w", err)
		}
	}

	task := repository.EncodeTask{
		JobID:        job.ID,
		Name:         job.Name,
		SourcePath:   job.SourcePath,
		ManifestPath: job.ManifestPath,
	}
	if err := d.queue.PublishEncodeTask(ctx, task); err != nil {
		if d.locks != nil {
			_ = d.locks.Release(context.WithoutCancel(ctx), job.Name, job.ID)
		}
		return fmt.Errorf("publish encode task: %w", err)
	}
	return nil
}

// Mode implements Dispatcher.
func (d *QueueDispatcher) Mode() string {
	return metrics.DispatchQueue
}
