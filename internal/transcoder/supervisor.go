package transcoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hszk-dev/dashstream/internal/domain/model"
	"github.com/hszk-dev/dashstream/internal/infrastructure/metrics"
)

// SupervisorConfig holds configuration for the Supervisor.
type SupervisorConfig struct {
	// Ladder is the rendition ladder every job is encoded into.
	Ladder Ladder

	// DASH holds the encoder settings shared by all renditions.
	DASH DASHOptions

	// MaxJobDuration kills a transcoder that runs longer than this.
	// Zero disables the limit.
	// Default: 2h
	MaxJobDuration time.Duration
}

// DefaultSupervisorConfig returns a SupervisorConfig with production defaults.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		Ladder:         DefaultLadder(),
		DASH:           DefaultDASHOptions(),
		MaxJobDuration: 2 * time.Hour,
	}
}

// Supervisor runs one transcoder process per submitted job and reports exactly
// one terminal Outcome for each.
//
// Jobs outlive the caller that submitted them; only MaxJobDuration or Shutdown
// stop a running process. Two running jobs never share a manifest path.
type Supervisor struct {
	runner         Runner
	prober         AudioProber
	ladder         Ladder
	dash           DASHOptions
	maxJobDuration time.Duration
	logger         *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	active map[string]uuid.UUID // manifest path -> owning job
	closed bool
}

// NewSupervisor creates a Supervisor. The ladder is validated once here.
func NewSupervisor(runner Runner, prober AudioProber, cfg SupervisorConfig, logger *slog.Logger) (*Supervisor, error) {
	if err := cfg.Ladder.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	ladder := make(Ladder, len(cfg.Ladder))
	copy(ladder, cfg.Ladder)

	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		runner:         runner,
		prober:         prober,
		ladder:         ladder,
		dash:           cfg.DASH,
		maxJobDuration: cfg.MaxJobDuration,
		logger:         logger,
		ctx:            ctx,
		cancel:         cancel,
		active:         make(map[string]uuid.UUID),
	}, nil
}

// Submit starts supervising req and returns a channel that receives the job's
// single Outcome and is then closed.
//
// Submit never blocks on the probe or the encode. It fails synchronously, with
// nothing spawned, when the request is incomplete, the supervisor is shut down,
// or another running job owns the same manifest path.
func (s *Supervisor) Submit(req EncodeRequest) (<-chan Outcome, error) {
	if req.JobID == uuid.Nil {
		return nil, fmt.Errorf("%w: job id is required", ErrInvalidRequest)
	}
	if req.SourcePath == "" || req.ManifestPath == "" {
		return nil, fmt.Errorf("%w: source and manifest paths are required", ErrInvalidRequest)
	}

	key := filepath.Clean(req.ManifestPath)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSupervisorClosed
	}
	if owner, busy := s.active[key]; busy {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s owned by job %s", ErrManifestInUse, key, owner)
	}
	s.active[key] = req.JobID
	s.wg.Add(1)
	s.mu.Unlock()

	outcomes := make(chan Outcome, 1)
	go s.supervise(req, key, outcomes)

	return outcomes, nil
}

// Active returns the number of jobs currently running.
func (s *Supervisor) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Shutdown stops accepting jobs and waits for running ones to finish.
// When ctx expires first, running transcoders are killed (their jobs fail)
// and Shutdown returns ctx.Err() once they have been reaped.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}

func (s *Supervisor) supervise(req EncodeRequest, key string, outcomes chan<- Outcome) {
	defer s.wg.Done()

	start := time.Now()
	logger := s.logger.With(
		slog.String("job_id", req.JobID.String()),
		slog.String("manifest_path", req.ManifestPath),
	)

	ctx, cancel := s.jobContext()
	defer cancel()

	metrics.ActiveEncodes.Inc()
	outcome := s.execute(ctx, req, logger)
	metrics.ActiveEncodes.Dec()
	outcome.Duration = time.Since(start)

	if outcome.Status == model.StatusFailed && req.OnFailure != nil {
		req.OnFailure()
	}

	// Free the path before reporting so the caller may resubmit on receipt.
	s.release(key)

	metrics.JobsFinishedTotal.WithLabelValues(outcome.Status.String()).Inc()
	metrics.EncodeDurationSeconds.WithLabelValues(outcome.Status.String()).Observe(outcome.Duration.Seconds())

	if outcome.Status == model.StatusComplete {
		logger.Info("transcoder completed",
			slog.Duration("duration", outcome.Duration),
			slog.Bool("has_audio", outcome.HasAudio),
		)
	} else {
		attrs := []any{
			slog.Duration("duration", outcome.Duration),
			slog.String("error", outcome.Err.Error()),
		}
		var exitErr *ExitError
		if errors.As(outcome.Err, &exitErr) {
			attrs = append(attrs, slog.Int("exit_code", exitErr.Code), slog.Any("output_tail", exitErr.Tail))
		}
		logger.Error("transcoder failed", attrs...)
	}

	outcomes <- outcome
	close(outcomes)
}

func (s *Supervisor) execute(ctx context.Context, req EncodeRequest, logger *slog.Logger) Outcome {
	outcome := Outcome{JobID: req.JobID, Status: model.StatusFailed}

	outcome.HasAudio = s.prober.HasAudio(ctx, req.SourcePath)

	args, err := BuildDASHArgs(req.SourcePath, req.ManifestPath, s.ladder, outcome.HasAudio, s.dash)
	if err != nil {
		outcome.Err = fmt.Errorf("build transcoder args: %w", err)
		return outcome
	}

	logger.Info("starting transcoder",
		slog.Int("renditions", len(s.ladder)),
		slog.Bool("has_audio", outcome.HasAudio),
	)

	err = s.runner.Run(ctx, args, logger)
	switch {
	case err == nil:
		outcome.Status = model.StatusComplete
	case s.ctx.Err() != nil:
		outcome.Err = fmt.Errorf("transcoder killed on shutdown: %w", err)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		outcome.Err = fmt.Errorf("%w (%s): %w", ErrJobTimeout, s.maxJobDuration, err)
	default:
		outcome.Err = err
	}

	return outcome
}

func (s *Supervisor) jobContext() (context.Context, context.CancelFunc) {
	if s.maxJobDuration > 0 {
		return context.WithTimeout(s.ctx, s.maxJobDuration)
	}
	return context.WithCancel(s.ctx)
}

func (s *Supervisor) release(key string) {
	s.mu.Lock()
	delete(s.active, key)
	s.mu.Unlock()
}
