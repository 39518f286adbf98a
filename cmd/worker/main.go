package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/hszk-dev/dashstream/internal/config"
	"github.com/hszk-dev/dashstream/internal/domain/repository"
	"github.com/hszk-dev/dashstream/internal/infrastructure/cache"
	"github.com/hszk-dev/dashstream/internal/infrastructure/postgres"
	"github.com/hszk-dev/dashstream/internal/infrastructure/queue"
	"github.com/hszk-dev/dashstream/internal/transcoder"
	"github.com/hszk-dev/dashstream/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Jobs.Registry != config.RegistryRedis {
		return fmt.Errorf("worker requires JOB_REGISTRY=%s", config.RegistryRedis)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize infrastructure clients
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis")
	registry := cache.NewRedisJobRegistry(redisClient, cfg.Jobs.Retention)

	var history repository.JobHistory
	if cfg.Database.Enabled {
		pgClient, err := postgres.NewClient(ctx, postgres.DefaultClientConfig(cfg.Database.DSN()))
		if err != nil {
			return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		defer pgClient.Close()
		logger.Info("connected to PostgreSQL")
		history = pgClient.JobRepository()
	}

	queueClient, err := queue.NewClient(ctx, queue.DefaultClientConfig(cfg.RabbitMQ.URL()), logger)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer queueClient.Close()
	logger.Info("connected to RabbitMQ")

	// Initialize transcoder
	ffmpegCfg := transcoder.DefaultFFmpegConfig()
	ffmpegCfg.FFmpegPath = cfg.Transcoder.FFmpegPath

	supCfg := transcoder.DefaultSupervisorConfig()
	supCfg.DASH.VideoPreset = cfg.Transcoder.Preset
	supCfg.DASH.SegmentDuration = cfg.Transcoder.SegmentSeconds
	supCfg.MaxJobDuration = cfg.Jobs.MaxDuration

	supervisor, err := transcoder.NewSupervisor(
		transcoder.NewFFmpegRunner(ffmpegCfg),
		transcoder.NewFFprobe(cfg.Transcoder.FFprobePath, logger),
		supCfg,
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create supervisor: %w", err)
	}

	processor := usecase.NewJobProcessor(supervisor, registry, history, logger)
	processor.SetStreamLock(cache.NewRedisStreamLock(redisClient, cfg.Jobs.StreamLockTTL))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting worker, consuming encode tasks")
		err := queueClient.ConsumeEncodeTasks(gctx, func(task repository.EncodeTask) error {
			logger.Info("processing task",
				slog.String("job_id", task.JobID.String()),
				slog.String("stream", task.Name),
			)
			// Status writes must land even while the worker is shutting down.
			return processor.Process(context.WithoutCancel(gctx), task)
		})
		if err != nil && gctx.Err() == nil {
			return fmt.Errorf("consumer error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down worker")

		// Running encodes get the shutdown window to finish, then are killed
		// and recorded as Failed.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
		defer cancel()

		if err := supervisor.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown timeout exceeded, in-flight encodes were killed",
				slog.String("error", err.Error()),
			)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("worker stopped")
	return nil
}
